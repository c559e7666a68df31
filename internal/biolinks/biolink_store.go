package biolinks

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateBiolink = "biolinks.create_biolink"
	opListBiolinks  = "biolinks.list_biolinks"
	opGetBiolink    = "biolinks.get_biolink"
	opUpdateBiolink = "biolinks.update_biolink"
	opDeleteBiolink = "biolinks.delete_biolink"

	reasonUsernameTaken = "username_taken"
	reasonNoFields      = "no_fields"
)

// ErrNoFields indicates an update request that carried no updatable fields.
var ErrNoFields = errors.New("biolinks: no fields to update")

// ErrUsernameTaken indicates a username already claimed by another biolink.
var ErrUsernameTaken = errors.New("biolinks: username already taken")

// CreateBiolinkInput describes a new biolink. Empty title and bio fall back to defaults.
type CreateBiolinkInput struct {
	Username string
	Title    string
	Bio      string
}

// BiolinkDetail is a biolink with its links ordered by position.
type BiolinkDetail struct {
	Biolink Biolink
	Links   []Link
}

// CreateBiolink claims a username for actor. The username is compared exactly.
func (s *Service) CreateBiolink(ctx context.Context, actor Actor, input CreateBiolinkInput) (Biolink, error) {
	if err := s.ready(opCreateBiolink); err != nil {
		return Biolink{}, err
	}
	if actor.ID == "" {
		return Biolink{}, NewServiceError(KindUnauthorized, opCreateBiolink, reasonMissingActor, ErrMissingActor)
	}
	username, err := NewUsername(input.Username)
	if err != nil {
		return Biolink{}, invalidInput(opCreateBiolink, err)
	}

	title := input.Title
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	id, err := s.newID(opCreateBiolink)
	if err != nil {
		return Biolink{}, err
	}
	now := s.nowSeconds()
	biolink := Biolink{
		ID:               id,
		OwnerID:          actor.ID.String(),
		Username:         username.String(),
		Title:            title,
		Bio:              input.Bio,
		ThemeJSON:        emptyThemeJSON,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&Biolink{}).Where("username = ?", username.String()).Count(&taken).Error; err != nil {
			return s.internal(opCreateBiolink, reasonQueryFailed, err, zap.String(fieldUserID, actor.ID.String()))
		}
		if taken > 0 {
			return NewServiceError(KindConflict, opCreateBiolink, reasonUsernameTaken, ErrUsernameTaken)
		}
		if err := tx.Create(&biolink).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return NewServiceError(KindConflict, opCreateBiolink, reasonUsernameTaken, ErrUsernameTaken)
			}
			return s.internal(opCreateBiolink, reasonInsertFailed, err, zap.String(fieldUserID, actor.ID.String()))
		}
		return nil
	})
	if err := s.finish(opCreateBiolink, txErr); err != nil {
		return Biolink{}, err
	}
	return biolink, nil
}

// ListBiolinks returns the biolinks owned by actor, newest first.
func (s *Service) ListBiolinks(ctx context.Context, actor Actor) ([]Biolink, error) {
	if err := s.ready(opListBiolinks); err != nil {
		return nil, err
	}
	if actor.ID == "" {
		return nil, NewServiceError(KindUnauthorized, opListBiolinks, reasonMissingActor, ErrMissingActor)
	}

	var biolinks []Biolink
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", actor.ID.String()).
		Order("created_at_s DESC").
		Order("id DESC").
		Find(&biolinks).Error; err != nil {
		return nil, s.internal(opListBiolinks, reasonQueryFailed, err, zap.String(fieldUserID, actor.ID.String()))
	}
	return biolinks, nil
}

// GetBiolink returns an owned biolink with its links ordered by position.
func (s *Service) GetBiolink(ctx context.Context, actor Actor, id ResourceID) (BiolinkDetail, error) {
	if err := s.ready(opGetBiolink); err != nil {
		return BiolinkDetail{}, err
	}

	var detail BiolinkDetail
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		biolink, err := s.guard.OwnedBiolink(tx, actor, id)
		if err != nil {
			return s.guardFailure(opGetBiolink, err, zap.String(fieldBiolinkID, id.String()))
		}
		links, err := orderedLinks(tx, id)
		if err != nil {
			return s.internal(opGetBiolink, reasonQueryFailed, err, zap.String(fieldBiolinkID, id.String()))
		}
		detail = BiolinkDetail{Biolink: biolink, Links: links}
		return nil
	})
	if err := s.finish(opGetBiolink, txErr); err != nil {
		return BiolinkDetail{}, err
	}
	return detail, nil
}

// UpdateBiolink applies the fields present in patch. Omitted fields are untouched.
func (s *Service) UpdateBiolink(ctx context.Context, actor Actor, id ResourceID, patch BiolinkPatch) (Biolink, error) {
	if err := s.ready(opUpdateBiolink); err != nil {
		return Biolink{}, err
	}

	var updated Biolink
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns, err := patch.columns()
		if err != nil {
			return invalidInput(opUpdateBiolink, err)
		}
		if len(columns) == 0 {
			if _, err := s.guard.OwnedBiolink(tx, actor, id); err != nil {
				return s.guardFailure(opUpdateBiolink, err, zap.String(fieldBiolinkID, id.String()))
			}
			return NewServiceError(KindInvalidInput, opUpdateBiolink, reasonNoFields, ErrNoFields)
		}
		if actor.ID == "" {
			return NewServiceError(KindUnauthorized, opUpdateBiolink, reasonMissingActor, ErrMissingActor)
		}

		columns["updated_at_s"] = s.nowSeconds()
		result := tx.Model(&Biolink{}).
			Where("id = ? AND owner_id = ?", id.String(), actor.ID.String()).
			Updates(columns)
		if result.Error != nil {
			return s.internal(opUpdateBiolink, reasonUpdateFailed, result.Error, zap.String(fieldBiolinkID, id.String()))
		}
		if result.RowsAffected == 0 {
			return NewServiceError(KindNotFound, opUpdateBiolink, reasonNotFound, ErrResourceNotFound)
		}
		reloaded, err := s.guard.OwnedBiolink(tx, actor, id)
		if err != nil {
			return s.guardFailure(opUpdateBiolink, err, zap.String(fieldBiolinkID, id.String()))
		}
		updated = reloaded
		return nil
	})
	if err := s.finish(opUpdateBiolink, txErr); err != nil {
		return Biolink{}, err
	}
	return updated, nil
}

// DeleteBiolink removes an owned biolink and every row that depends on it.
func (s *Service) DeleteBiolink(ctx context.Context, actor Actor, id ResourceID) error {
	if err := s.ready(opDeleteBiolink); err != nil {
		return err
	}
	if actor.ID == "" {
		return NewServiceError(KindUnauthorized, opDeleteBiolink, reasonMissingActor, ErrMissingActor)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id.String(), actor.ID.String()).Delete(&Biolink{})
		if result.Error != nil {
			return s.internal(opDeleteBiolink, reasonDeleteFailed, result.Error, zap.String(fieldBiolinkID, id.String()))
		}
		if result.RowsAffected == 0 {
			return NewServiceError(KindNotFound, opDeleteBiolink, reasonNotFound, ErrResourceNotFound)
		}
		dependents := []interface{}{&Link{}, &SocialLink{}, &EmailSubscriber{}, &AnalyticsEvent{}, &QrScan{}}
		for _, model := range dependents {
			if err := tx.Where("biolink_id = ?", id.String()).Delete(model).Error; err != nil {
				return s.internal(opDeleteBiolink, reasonDeleteFailed, err, zap.String(fieldBiolinkID, id.String()))
			}
		}
		return nil
	})
	return s.finish(opDeleteBiolink, txErr)
}

func orderedLinks(tx *gorm.DB, biolinkID ResourceID) ([]Link, error) {
	links := make([]Link, 0)
	err := tx.Where("biolink_id = ?", biolinkID.String()).
		Order("position ASC").
		Order("id ASC").
		Find(&links).Error
	return links, err
}
