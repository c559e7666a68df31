package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/auth"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/biolinkhq/biolink/internal/public"
	"github.com/biolinkhq/biolink/internal/qrcode"
	"github.com/biolinkhq/biolink/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorContextKey = "biolink_actor"

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingAccounts         = errors.New("account registry dependency required")
	errMissingStore            = errors.New("resource store dependency required")
	errMissingRecorder         = errors.New("analytics recorder dependency required")
	errMissingAggregator       = errors.New("analytics aggregator dependency required")
	errMissingResolver         = errors.New("public resolver dependency required")
	errMissingQrGenerator      = errors.New("qr code generator dependency required")
)

// SessionValidator extracts and validates the session token of a request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// AccountRegistry resolves session claims into actors and manages accounts.
type AccountRegistry interface {
	ResolveActor(ctx context.Context, claims auth.SessionClaims) (biolinks.Actor, error)
	CreateAccount(ctx context.Context, actor biolinks.Actor, input users.CreateAccountInput) (users.Account, error)
}

// Dependencies are the collaborators wired into the HTTP handler.
type Dependencies struct {
	Sessions       SessionValidator
	Accounts       AccountRegistry
	Store          *biolinks.Service
	Recorder       *analytics.Recorder
	Aggregator     *analytics.Aggregator
	Resolver       *public.Resolver
	QrCodes        *qrcode.Generator
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessionValidator
	case deps.Accounts == nil:
		return nil, errMissingAccounts
	case deps.Store == nil:
		return nil, errMissingStore
	case deps.Recorder == nil:
		return nil, errMissingRecorder
	case deps.Aggregator == nil:
		return nil, errMissingAggregator
	case deps.Resolver == nil:
		return nil, errMissingResolver
	case deps.QrCodes == nil:
		return nil, errMissingQrGenerator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:   deps.Sessions,
		accounts:   deps.Accounts,
		store:      deps.Store,
		recorder:   deps.Recorder,
		aggregator: deps.Aggregator,
		resolver:   deps.Resolver,
		qrCodes:    deps.QrCodes,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/public/:username", handler.handleResolvePublic)
	router.GET("/q/:username", handler.handleQrScan)
	router.GET("/social-links", handler.handleListSocialLinks)
	router.POST("/email-subscribers", handler.handleAddEmailSubscriber)
	router.POST("/track-click", handler.handleTrackClick)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/biolinks", handler.handleListBiolinks)
	protected.POST("/biolinks", handler.handleCreateBiolink)
	protected.GET("/biolinks/:id", handler.handleGetBiolink)
	protected.PATCH("/biolinks/:id", handler.handleUpdateBiolink)
	protected.DELETE("/biolinks/:id", handler.handleDeleteBiolink)

	protected.POST("/biolinks/:id/links", handler.handleCreateLink)
	protected.PUT("/biolinks/:id/links/order", handler.handleReorderLinks)
	protected.PATCH("/links/:id", handler.handleUpdateLink)
	protected.DELETE("/links/:id", handler.handleDeleteLink)

	protected.POST("/biolinks/:id/social-links", handler.handleCreateSocialLink)
	protected.PUT("/biolinks/:id/social-links/order", handler.handleReorderSocialLinks)
	protected.PATCH("/social-links/:id", handler.handleUpdateSocialLink)
	protected.DELETE("/social-links/:id", handler.handleDeleteSocialLink)

	protected.GET("/biolinks/:id/subscribers", handler.handleListEmailSubscribers)
	protected.GET("/biolinks/:id/qr-code", handler.handleQrCode)

	protected.GET("/analytics/:id", handler.handleAnalyticsOverview)
	protected.GET("/analytics/:id/advanced", handler.handleAdvancedAnalytics)

	protected.POST("/admin/users", handler.handleCreateAccount)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		// Any origin may call, but only with bearer tokens; session cookies need an explicit list.
		config.AllowOriginFunc = func(string) bool { return true }
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

type httpHandler struct {
	sessions   SessionValidator
	accounts   AccountRegistry
	store      *biolinks.Service
	recorder   *analytics.Recorder
	aggregator *analytics.Aggregator
	resolver   *public.Resolver
	qrCodes    *qrcode.Generator
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionToken):
		case errors.Is(err, auth.ErrExpiredSessionToken):
			h.logger.Info("token validation failed", zap.Error(err))
		default:
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": string(biolinks.KindUnauthorized)})
		return
	}
	actor, err := h.accounts.ResolveActor(c.Request.Context(), claims)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Set(actorContextKey, actor)
	c.Next()
}

func actorFrom(c *gin.Context) biolinks.Actor {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return biolinks.Actor{}
	}
	actor, _ := value.(biolinks.Actor)
	return actor
}
