// Package public resolves published biolinks for anonymous visitors.
package public

import (
	"context"
	"errors"
	"time"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opResolverNew = "public.resolver.new"
	opResolve     = "public.resolve"
	opResolveScan = "public.resolve_scan"

	reasonNotFound = "not_found"
	reasonQuery    = "query_failed"
	reasonMissing  = "missing_database"
)

var (
	// ErrNotPublished covers both unknown usernames and unpublished biolinks.
	ErrNotPublished = errors.New("public: biolink not found")

	errMissingDatabase = errors.New("database handle is required")
	errMissingRecorder = errors.New("event recorder is required")
)

// EventRecorder is the subset of the analytics recorder used on the public path.
type EventRecorder interface {
	RecordView(ctx context.Context, biolinkID biolinks.ResourceID, visit analytics.Visit) error
	RecordQrScan(ctx context.Context, biolinkID biolinks.ResourceID) error
}

// Config describes the dependencies of the resolver.
type Config struct {
	Database *gorm.DB
	Recorder EventRecorder
	Logger   *zap.Logger
	// AsyncViews records views on a detached goroutine instead of inline.
	AsyncViews bool
}

// Resolver serves published biolinks without an ownership check.
type Resolver struct {
	db         *gorm.DB
	recorder   EventRecorder
	logger     *zap.Logger
	asyncViews bool
	pending    chan struct{}
}

// Biolink is the public projection of a biolink. It never carries the owner.
type Biolink struct {
	ID                 string         `json:"id"`
	Username           string         `json:"username"`
	Title              string         `json:"title"`
	Bio                string         `json:"bio"`
	Theme              biolinks.Theme `json:"theme"`
	AvatarURL          *string        `json:"avatar_url"`
	EnableEmailCapture bool           `json:"enable_email_capture"`
	SocialLinks        []SocialLink   `json:"social_links"`
}

// Link is a visible link on a public page.
type Link struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Icon  *string `json:"icon"`
}

// SocialLink is a visible social link on a public page.
type SocialLink struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Page is the resolved public page.
type Page struct {
	Biolink Biolink `json:"biolink"`
	Links   []Link  `json:"links"`
}

// NewResolver validates the configuration and constructs a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Database == nil {
		return nil, biolinks.NewServiceError(biolinks.KindInternal, opResolverNew, reasonMissing, errMissingDatabase)
	}
	if cfg.Recorder == nil {
		return nil, biolinks.NewServiceError(biolinks.KindInternal, opResolverNew, "missing_recorder", errMissingRecorder)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		db:         cfg.Database,
		recorder:   cfg.Recorder,
		logger:     logger,
		asyncViews: cfg.AsyncViews,
		pending:    make(chan struct{}, 64),
	}, nil
}

// Resolve returns the published biolink with its visible links ordered by position and
// records exactly one view. A failed view record is logged and never fails the resolution.
func (r *Resolver) Resolve(ctx context.Context, username string, visit analytics.Visit) (Page, error) {
	stored, err := r.published(ctx, opResolve, username)
	if err != nil {
		return Page{}, err
	}

	var links []biolinks.Link
	var socialLinks []biolinks.SocialLink
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("biolink_id = ? AND visible = ?", stored.ID, true).
			Order("position ASC").Order("id ASC").
			Find(&links).Error; err != nil {
			return err
		}
		return tx.Where("biolink_id = ? AND visible = ?", stored.ID, true).
			Order("position ASC").Order("id ASC").
			Find(&socialLinks).Error
	})
	if txErr != nil {
		r.logger.Error("public resolver error",
			zap.String("operation", opResolve),
			zap.String("reason", reasonQuery),
			zap.String("biolink_id", stored.ID),
			zap.Error(txErr))
		return Page{}, biolinks.NewServiceError(biolinks.KindInternal, opResolve, reasonQuery, txErr)
	}

	r.recordView(ctx, biolinks.ResourceID(stored.ID), visit)
	return project(stored, links, socialLinks), nil
}

// ResolveScan resolves the username behind a QR code, records the scan, and returns the
// biolink username for redirection. Failed scan records are logged and swallowed.
func (r *Resolver) ResolveScan(ctx context.Context, username string) (string, error) {
	stored, err := r.published(ctx, opResolveScan, username)
	if err != nil {
		return "", err
	}
	if err := r.recorder.RecordQrScan(ctx, biolinks.ResourceID(stored.ID)); err != nil {
		r.logger.Warn("qr scan not recorded",
			zap.String("biolink_id", stored.ID),
			zap.Error(err))
	}
	return stored.Username, nil
}

// Wait blocks until detached view records finish or ctx ends.
func (r *Resolver) Wait(ctx context.Context) error {
	acquired := 0
	defer func() {
		for ; acquired > 0; acquired-- {
			<-r.pending
		}
	}()
	for acquired < cap(r.pending) {
		select {
		case r.pending <- struct{}{}:
			acquired++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Resolver) published(ctx context.Context, operation string, username string) (biolinks.Biolink, error) {
	if r == nil || r.db == nil {
		return biolinks.Biolink{}, biolinks.NewServiceError(biolinks.KindInternal, operation, reasonMissing, errMissingDatabase)
	}
	if username == "" {
		return biolinks.Biolink{}, biolinks.NewServiceError(biolinks.KindNotFound, operation, reasonNotFound, ErrNotPublished)
	}
	var stored biolinks.Biolink
	err := r.db.WithContext(ctx).
		Where("username = ? AND published = ?", username, true).
		Take(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return biolinks.Biolink{}, biolinks.NewServiceError(biolinks.KindNotFound, operation, reasonNotFound, ErrNotPublished)
	}
	if err != nil {
		r.logger.Error("public resolver error",
			zap.String("operation", operation),
			zap.String("reason", reasonQuery),
			zap.Error(err))
		return biolinks.Biolink{}, biolinks.NewServiceError(biolinks.KindInternal, operation, reasonQuery, err)
	}
	return stored, nil
}

func (r *Resolver) recordView(ctx context.Context, biolinkID biolinks.ResourceID, visit analytics.Visit) {
	if !r.asyncViews {
		r.writeView(ctx, biolinkID, visit)
		return
	}
	detached := context.WithoutCancel(ctx)
	select {
	case r.pending <- struct{}{}:
		go func() {
			defer func() { <-r.pending }()
			writeCtx, cancel := context.WithTimeout(detached, 5*time.Second)
			defer cancel()
			r.writeView(writeCtx, biolinkID, visit)
		}()
	default:
		// Saturated: record inline rather than drop the view.
		r.writeView(ctx, biolinkID, visit)
	}
}

func (r *Resolver) writeView(ctx context.Context, biolinkID biolinks.ResourceID, visit analytics.Visit) {
	if err := r.recorder.RecordView(ctx, biolinkID, visit); err != nil {
		r.logger.Warn("view not recorded",
			zap.String("biolink_id", biolinkID.String()),
			zap.Error(err))
	}
}

func project(stored biolinks.Biolink, links []biolinks.Link, socialLinks []biolinks.SocialLink) Page {
	page := Page{
		Biolink: Biolink{
			ID:                 stored.ID,
			Username:           stored.Username,
			Title:              stored.Title,
			Bio:                stored.Bio,
			Theme:              stored.Theme(),
			AvatarURL:          stored.AvatarURL,
			EnableEmailCapture: stored.EnableEmailCapture,
			SocialLinks:        make([]SocialLink, 0, len(socialLinks)),
		},
		Links: make([]Link, 0, len(links)),
	}
	for _, link := range links {
		page.Links = append(page.Links, Link{ID: link.ID, Title: link.Title, URL: link.URL, Icon: link.Icon})
	}
	for _, socialLink := range socialLinks {
		page.Biolink.SocialLinks = append(page.Biolink.SocialLinks, SocialLink{
			ID:       socialLink.ID,
			Platform: socialLink.Platform,
			URL:      socialLink.URL,
		})
	}
	return page
}
