package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "BIOLINK"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "biolink.db"
	defaultLogLevel        = "info"
	defaultLogEncoding     = "json"
	defaultIssuer          = "biolink-auth"
	defaultTokenTTLMinutes = 60
	defaultBaseURL         = "http://localhost:8080"
	defaultQrServiceURL    = "https://api.qrserver.com/v1/create-qr-code/"
	defaultQrSize          = 300
	defaultTopLinksLimit   = 10
	defaultReferrerLimit   = 10
	defaultOverviewDays    = 7
	defaultAnalyticsDays   = 30
	maxAnalyticsDays       = 365
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	LogEncoding        string
	AuthSigningSecret  string
	AuthIssuer         string
	AuthTokenTTLMin    int
	AuthCookieName     string
	BaseURL            string
	CORSAllowedOrigins []string
	AsyncViews         bool
	TopLinksLimit      int
	ReferrerLimit      int
	OverviewDays       int
	DefaultDays        int
	QrServiceURL       string
	QrDefaultSize      int
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are ignored; existing environment variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("auth.cookie_name", "")
	configViper.SetDefault("app.base_url", defaultBaseURL)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("analytics.async_views", false)
	configViper.SetDefault("analytics.top_links_limit", defaultTopLinksLimit)
	configViper.SetDefault("analytics.referrer_limit", defaultReferrerLimit)
	configViper.SetDefault("analytics.overview_days", defaultOverviewDays)
	configViper.SetDefault("analytics.default_days", defaultAnalyticsDays)
	configViper.SetDefault("qr.service_url", defaultQrServiceURL)
	configViper.SetDefault("qr.default_size", defaultQrSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		LogEncoding:        configViper.GetString("log.encoding"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:         configViper.GetString("auth.issuer"),
		AuthTokenTTLMin:    configViper.GetInt("auth.token_ttl_minutes"),
		AuthCookieName:     configViper.GetString("auth.cookie_name"),
		BaseURL:            strings.TrimRight(configViper.GetString("app.base_url"), "/"),
		CORSAllowedOrigins: splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		AsyncViews:         configViper.GetBool("analytics.async_views"),
		TopLinksLimit:      configViper.GetInt("analytics.top_links_limit"),
		ReferrerLimit:      configViper.GetInt("analytics.referrer_limit"),
		OverviewDays:       configViper.GetInt("analytics.overview_days"),
		DefaultDays:        configViper.GetInt("analytics.default_days"),
		QrServiceURL:       configViper.GetString("qr.service_url"),
		QrDefaultSize:      configViper.GetInt("qr.default_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("app.base_url is required")
	}
	if c.AuthTokenTTLMin <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch c.LogEncoding {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding must be json or console")
	}
	if c.TopLinksLimit <= 0 || c.ReferrerLimit <= 0 {
		return fmt.Errorf("analytics limits must be positive")
	}
	if c.OverviewDays < 1 || c.OverviewDays > maxAnalyticsDays {
		return fmt.Errorf("analytics.overview_days must be within 1..%d", maxAnalyticsDays)
	}
	if c.DefaultDays < 1 || c.DefaultDays > maxAnalyticsDays {
		return fmt.Errorf("analytics.default_days must be within 1..%d", maxAnalyticsDays)
	}
	if c.QrDefaultSize <= 0 {
		return fmt.Errorf("qr.default_size must be positive")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
