package biolinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opAddEmailSubscriber   = "biolinks.add_email_subscriber"
	opListEmailSubscribers = "biolinks.list_email_subscribers"

	reasonCaptureDisabled   = "capture_disabled"
	reasonAlreadySubscribed = "already_subscribed"
	reasonForbidden         = "forbidden"
)

var (
	// ErrInvalidEmail indicates a malformed subscriber address.
	ErrInvalidEmail = errors.New("biolinks: invalid email address")
	// ErrCaptureDisabled indicates that the biolink does not accept subscribers.
	ErrCaptureDisabled = errors.New("biolinks: email capture disabled")
	// ErrAlreadySubscribed indicates that the address is already subscribed to the biolink.
	ErrAlreadySubscribed = errors.New("biolinks: email already subscribed")

	emailValidator = validator.New()
)

// AddEmailSubscriber captures an address from a public page. No actor is required.
func (s *Service) AddEmailSubscriber(ctx context.Context, biolinkID ResourceID, email string) (EmailSubscriber, error) {
	if err := s.ready(opAddEmailSubscriber); err != nil {
		return EmailSubscriber{}, err
	}
	if biolinkID == "" {
		return EmailSubscriber{}, invalidInput(opAddEmailSubscriber, fmt.Errorf("%w: biolink id", ErrInvalidResourceID))
	}
	address := strings.TrimSpace(email)
	if err := emailValidator.Var(address, "required,email,max=320"); err != nil {
		return EmailSubscriber{}, invalidInput(opAddEmailSubscriber, fmt.Errorf("%w: %v", ErrInvalidEmail, err))
	}

	id, err := s.newID(opAddEmailSubscriber)
	if err != nil {
		return EmailSubscriber{}, err
	}

	var created EmailSubscriber
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var biolink Biolink
		err := tx.Select("id", "enable_email_capture").Where("id = ?", biolinkID.String()).Take(&biolink).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewServiceError(KindInvalidState, opAddEmailSubscriber, reasonCaptureDisabled, ErrCaptureDisabled)
		}
		if err != nil {
			return s.internal(opAddEmailSubscriber, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		if !biolink.EnableEmailCapture {
			return NewServiceError(KindInvalidState, opAddEmailSubscriber, reasonCaptureDisabled, ErrCaptureDisabled)
		}

		var existing int64
		if err := tx.Model(&EmailSubscriber{}).
			Where("biolink_id = ? AND email = ?", biolinkID.String(), address).
			Count(&existing).Error; err != nil {
			return s.internal(opAddEmailSubscriber, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		if existing > 0 {
			return NewServiceError(KindConflict, opAddEmailSubscriber, reasonAlreadySubscribed, ErrAlreadySubscribed)
		}

		created = EmailSubscriber{
			ID:                  id,
			BiolinkID:           biolinkID.String(),
			Email:               address,
			SubscribedAtSeconds: s.nowSeconds(),
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return NewServiceError(KindConflict, opAddEmailSubscriber, reasonAlreadySubscribed, ErrAlreadySubscribed)
			}
			return s.internal(opAddEmailSubscriber, reasonInsertFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		return nil
	})
	if err := s.finish(opAddEmailSubscriber, txErr); err != nil {
		return EmailSubscriber{}, err
	}
	return created, nil
}

// ListEmailSubscribers returns the subscribers of an owned biolink, newest first.
// Ownership failures surface as Forbidden.
func (s *Service) ListEmailSubscribers(ctx context.Context, actor Actor, biolinkID ResourceID) ([]EmailSubscriber, error) {
	if err := s.ready(opListEmailSubscribers); err != nil {
		return nil, err
	}

	subscribers := make([]EmailSubscriber, 0)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.guard.OwnedBiolink(tx, actor, biolinkID); err != nil {
			if errors.Is(err, ErrResourceNotFound) {
				return NewServiceError(KindForbidden, opListEmailSubscribers, reasonForbidden, err)
			}
			return s.guardFailure(opListEmailSubscribers, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		return tx.Where("biolink_id = ?", biolinkID.String()).
			Order("subscribed_at_s DESC").
			Order("id DESC").
			Find(&subscribers).Error
	})
	if err := s.finish(opListEmailSubscribers, txErr, zap.String(fieldBiolinkID, biolinkID.String())); err != nil {
		return nil, err
	}
	return subscribers, nil
}
