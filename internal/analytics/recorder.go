package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opRecorderNew  = "analytics.recorder.new"
	opRecordView   = "analytics.record_view"
	opRecordClick  = "analytics.record_click"
	opRecordQrScan = "analytics.record_qr_scan"

	fieldOperation = "operation"
	fieldReason    = "reason"
	fieldBiolinkID = "biolink_id"
	fieldLinkID    = "link_id"

	reasonMissingDatabase   = "missing_database"
	reasonMissingIDProvider = "missing_id_provider"
	reasonInvalidInput      = "invalid_input"
	reasonForeignLink       = "link_not_in_biolink"
	reasonIDGeneration      = "id_generation_failed"
	reasonQueryFailed       = "query_failed"
	reasonInsertFailed      = "insert_failed"
)

var (
	// ErrMissingBiolinkID indicates an event without a biolink reference.
	ErrMissingBiolinkID = errors.New("analytics: biolink id is required")
	// ErrMissingLinkID indicates a click without a link reference.
	ErrMissingLinkID = errors.New("analytics: link id is required")
	// ErrLinkNotInBiolink indicates a click on a link the biolink does not contain.
	ErrLinkNotInBiolink = errors.New("analytics: link does not belong to biolink")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// RecorderConfig describes the dependencies of the event recorder.
type RecorderConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider biolinks.IDProvider
	Logger     *zap.Logger
}

// Recorder appends immutable view, click, and QR scan records. It never updates or deletes them.
type Recorder struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider biolinks.IDProvider
	logger     *zap.Logger
}

// NewRecorder validates the configuration and constructs a Recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Database == nil {
		return nil, biolinks.NewServiceError(biolinks.KindInternal, opRecorderNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, biolinks.NewServiceError(biolinks.KindInternal, opRecorderNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// RecordView appends a page-level view event.
func (r *Recorder) RecordView(ctx context.Context, biolinkID biolinks.ResourceID, visit Visit) error {
	if biolinkID == "" {
		return biolinks.NewServiceError(biolinks.KindInvalidInput, opRecordView, reasonInvalidInput, ErrMissingBiolinkID)
	}
	return r.append(ctx, opRecordView, biolinkID, nil, biolinks.EventTypeView, visit)
}

// RecordClick appends a click attributed to a link of the biolink.
func (r *Recorder) RecordClick(ctx context.Context, biolinkID biolinks.ResourceID, linkID biolinks.ResourceID, visit Visit) error {
	if biolinkID == "" {
		return biolinks.NewServiceError(biolinks.KindInvalidInput, opRecordClick, reasonInvalidInput, ErrMissingBiolinkID)
	}
	if linkID == "" {
		return biolinks.NewServiceError(biolinks.KindInvalidInput, opRecordClick, reasonInvalidInput, ErrMissingLinkID)
	}

	var matched int64
	if err := r.db.WithContext(ctx).Model(&biolinks.Link{}).
		Where("id = ? AND biolink_id = ?", linkID.String(), biolinkID.String()).
		Count(&matched).Error; err != nil {
		r.logError(opRecordClick, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		return biolinks.NewServiceError(biolinks.KindInternal, opRecordClick, reasonQueryFailed, err)
	}
	if matched == 0 {
		return biolinks.NewServiceError(biolinks.KindInvalidInput, opRecordClick, reasonForeignLink,
			fmt.Errorf("%w: %s", ErrLinkNotInBiolink, linkID))
	}

	link := linkID.String()
	return r.append(ctx, opRecordClick, biolinkID, &link, biolinks.EventTypeClick, visit)
}

// RecordQrScan appends a QR scan record.
func (r *Recorder) RecordQrScan(ctx context.Context, biolinkID biolinks.ResourceID) error {
	if biolinkID == "" {
		return biolinks.NewServiceError(biolinks.KindInvalidInput, opRecordQrScan, reasonInvalidInput, ErrMissingBiolinkID)
	}
	id, err := r.newID(opRecordQrScan)
	if err != nil {
		return err
	}
	scan := biolinks.QrScan{
		ID:               id,
		BiolinkID:        biolinkID.String(),
		ScannedAtSeconds: r.clock().UTC().Unix(),
	}
	if err := r.db.WithContext(ctx).Create(&scan).Error; err != nil {
		r.logError(opRecordQrScan, reasonInsertFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		return biolinks.NewServiceError(biolinks.KindInternal, opRecordQrScan, reasonInsertFailed, err)
	}
	return nil
}

func (r *Recorder) append(ctx context.Context, operation string, biolinkID biolinks.ResourceID, linkID *string, eventType biolinks.EventType, visit Visit) error {
	id, err := r.newID(operation)
	if err != nil {
		return err
	}
	event := biolinks.AnalyticsEvent{
		ID:               id,
		BiolinkID:        biolinkID.String(),
		LinkID:           linkID,
		EventType:        eventType,
		Device:           nullable(visit.Device),
		Referrer:         nullable(visit.Referrer),
		CreatedAtSeconds: r.clock().UTC().Unix(),
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.logError(operation, reasonInsertFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		return biolinks.NewServiceError(biolinks.KindInternal, operation, reasonInsertFailed, err)
	}
	return nil
}

func (r *Recorder) newID(operation string) (string, error) {
	id, err := r.idProvider.NewID()
	if err != nil {
		r.logError(operation, reasonIDGeneration, err)
		return "", biolinks.NewServiceError(biolinks.KindInternal, operation, reasonIDGeneration, err)
	}
	return id, nil
}

func (r *Recorder) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := append([]zap.Field{
		zap.String(fieldOperation, operation),
		zap.String(fieldReason, reason),
		zap.Error(err),
	}, fields...)
	r.logger.Error("analytics recorder error", attrs...)
}
