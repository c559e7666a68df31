// Package qrcode builds QR code targets for biolinks and renders them as PNG images.
package qrcode

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	// MinSize and MaxSize bound the rendered image edge in pixels.
	MinSize = 64
	MaxSize = 1024

	defaultServiceURL = "https://api.qrserver.com/v1/create-qr-code/"
	defaultSize       = 300
)

var (
	// ErrInvalidSize indicates an edge length outside MinSize..MaxSize.
	ErrInvalidSize = errors.New("qrcode: invalid size")
	// ErrInvalidBaseURL indicates an application base URL that is not absolute.
	ErrInvalidBaseURL = errors.New("qrcode: base url must be absolute")
	// ErrMissingUsername indicates a target request without a username.
	ErrMissingUsername = errors.New("qrcode: username is required")
)

// Targets are the URLs associated with a biolink's QR code.
type Targets struct {
	QrCodeURL  string `json:"qr_code_url"`
	BiolinkURL string `json:"biolink_url"`
	ScanURL    string `json:"scan_url"`
	Size       int    `json:"size"`
}

// Config describes the generator endpoints.
type Config struct {
	ServiceURL  string
	BaseURL     string
	DefaultSize int
}

// Generator builds QR targets. The encoded payload is always the scan URL so that
// scans can be counted before redirecting to the public page.
type Generator struct {
	serviceURL  *url.URL
	baseURL     string
	defaultSize int
}

// NewGenerator validates the configuration and constructs a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	rawService := strings.TrimSpace(cfg.ServiceURL)
	if rawService == "" {
		rawService = defaultServiceURL
	}
	serviceURL, err := url.Parse(rawService)
	if err != nil || !serviceURL.IsAbs() {
		return nil, fmt.Errorf("qrcode: invalid service url %q", rawService)
	}

	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	size := cfg.DefaultSize
	if size == 0 {
		size = defaultSize
	}
	if err := validateSize(size); err != nil {
		return nil, err
	}

	return &Generator{
		serviceURL:  serviceURL,
		baseURL:     strings.TrimRight(base.String(), "/"),
		defaultSize: size,
	}, nil
}

// Targets returns the image, page, and scan URLs for username. A zero size uses the default.
func (g *Generator) Targets(username string, size int) (Targets, error) {
	if username == "" {
		return Targets{}, ErrMissingUsername
	}
	if size == 0 {
		size = g.defaultSize
	}
	if err := validateSize(size); err != nil {
		return Targets{}, err
	}

	scanURL := g.ScanURL(username)
	imageURL := *g.serviceURL
	query := imageURL.Query()
	query.Set("size", fmt.Sprintf("%dx%d", size, size))
	query.Set("data", scanURL)
	imageURL.RawQuery = query.Encode()

	return Targets{
		QrCodeURL:  imageURL.String(),
		BiolinkURL: g.BiolinkURL(username),
		ScanURL:    scanURL,
		Size:       size,
	}, nil
}

// BiolinkURL is the public page address of username.
func (g *Generator) BiolinkURL(username string) string {
	return g.baseURL + "/public/" + url.PathEscape(username)
}

// ScanURL is the address encoded into the QR code.
func (g *Generator) ScanURL(username string) string {
	return g.baseURL + "/q/" + url.PathEscape(username)
}

// RenderPNG encodes the scan URL of username as a PNG image.
func (g *Generator) RenderPNG(username string, size int) ([]byte, error) {
	targets, err := g.Targets(username, size)
	if err != nil {
		return nil, err
	}
	return goqrcode.Encode(targets.ScanURL, goqrcode.Medium, targets.Size)
}

func validateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return fmt.Errorf("%w: %d not in %d..%d", ErrInvalidSize, size, MinSize, MaxSize)
	}
	return nil
}
