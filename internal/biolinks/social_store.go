package biolinks

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListSocialLinks   = "biolinks.list_social_links"
	opCreateSocialLink  = "biolinks.create_social_link"
	opUpdateSocialLink  = "biolinks.update_social_link"
	opDeleteSocialLink  = "biolinks.delete_social_link"
	opReorderSocialLink = "biolinks.reorder_social_links"

	fieldSocialLinkID = "social_link_id"
)

// CreateSocialLinkInput describes a new social link. A nil Position appends after the
// current maximum; a nil Visible defaults to true.
type CreateSocialLinkInput struct {
	Platform string
	URL      string
	Position *int64
	Visible  *bool
}

// ListSocialLinks returns every social link of a biolink ordered by position. No actor is required.
func (s *Service) ListSocialLinks(ctx context.Context, biolinkID ResourceID) ([]SocialLink, error) {
	if err := s.ready(opListSocialLinks); err != nil {
		return nil, err
	}
	if biolinkID == "" {
		return nil, invalidInput(opListSocialLinks, fmt.Errorf("%w: biolink id", ErrInvalidResourceID))
	}

	socialLinks := make([]SocialLink, 0)
	if err := s.db.WithContext(ctx).
		Where("biolink_id = ?", biolinkID.String()).
		Order("position ASC").
		Order("id ASC").
		Find(&socialLinks).Error; err != nil {
		return nil, s.internal(opListSocialLinks, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
	}
	return socialLinks, nil
}

// CreateSocialLink adds a social link to an owned biolink.
func (s *Service) CreateSocialLink(ctx context.Context, actor Actor, biolinkID ResourceID, input CreateSocialLinkInput) (SocialLink, error) {
	if err := s.ready(opCreateSocialLink); err != nil {
		return SocialLink{}, err
	}
	if strings.TrimSpace(input.Platform) == "" {
		return SocialLink{}, invalidInput(opCreateSocialLink, fmt.Errorf("%w: platform", ErrEmptyField))
	}
	if strings.TrimSpace(input.URL) == "" {
		return SocialLink{}, invalidInput(opCreateSocialLink, fmt.Errorf("%w: url", ErrEmptyField))
	}

	id, err := s.newID(opCreateSocialLink)
	if err != nil {
		return SocialLink{}, err
	}

	visible := true
	if input.Visible != nil {
		visible = *input.Visible
	}

	var created SocialLink
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.guard.OwnedBiolink(tx, actor, biolinkID); err != nil {
			return s.guardFailure(opCreateSocialLink, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		var position int64
		if input.Position != nil {
			position = *input.Position
		} else {
			next, err := nextPosition(tx, &SocialLink{}, biolinkID)
			if err != nil {
				return s.internal(opCreateSocialLink, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
			}
			position = next
		}
		created = SocialLink{
			ID:               id,
			BiolinkID:        biolinkID.String(),
			Platform:         input.Platform,
			URL:              input.URL,
			Position:         position,
			Visible:          visible,
			CreatedAtSeconds: s.nowSeconds(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return s.internal(opCreateSocialLink, reasonInsertFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		return nil
	})
	if err := s.finish(opCreateSocialLink, txErr); err != nil {
		return SocialLink{}, err
	}
	return created, nil
}

// UpdateSocialLink applies the fields present in patch to an owned social link.
func (s *Service) UpdateSocialLink(ctx context.Context, actor Actor, socialLinkID ResourceID, patch SocialLinkPatch) (SocialLink, error) {
	if err := s.ready(opUpdateSocialLink); err != nil {
		return SocialLink{}, err
	}

	var updated SocialLink
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns, err := patch.columns()
		if err != nil {
			return invalidInput(opUpdateSocialLink, err)
		}
		if len(columns) == 0 {
			if _, err := s.guard.OwnedSocialLink(tx, actor, socialLinkID); err != nil {
				return s.guardFailure(opUpdateSocialLink, err, zap.String(fieldSocialLinkID, socialLinkID.String()))
			}
			return NewServiceError(KindInvalidInput, opUpdateSocialLink, reasonNoFields, ErrNoFields)
		}
		if actor.ID == "" {
			return NewServiceError(KindUnauthorized, opUpdateSocialLink, reasonMissingActor, ErrMissingActor)
		}

		result := tx.Model(&SocialLink{}).
			Where("id = ? AND biolink_id IN (?)", socialLinkID.String(), ownedBiolinkIDs(tx, actor.ID)).
			Updates(columns)
		if result.Error != nil {
			return s.internal(opUpdateSocialLink, reasonUpdateFailed, result.Error, zap.String(fieldSocialLinkID, socialLinkID.String()))
		}
		if result.RowsAffected == 0 {
			return NewServiceError(KindNotFound, opUpdateSocialLink, reasonNotFound, ErrResourceNotFound)
		}
		reloaded, err := s.guard.OwnedSocialLink(tx, actor, socialLinkID)
		if err != nil {
			return s.guardFailure(opUpdateSocialLink, err, zap.String(fieldSocialLinkID, socialLinkID.String()))
		}
		updated = reloaded
		return nil
	})
	if err := s.finish(opUpdateSocialLink, txErr); err != nil {
		return SocialLink{}, err
	}
	return updated, nil
}

// DeleteSocialLink removes an owned social link without renumbering its siblings.
func (s *Service) DeleteSocialLink(ctx context.Context, actor Actor, socialLinkID ResourceID) error {
	if err := s.ready(opDeleteSocialLink); err != nil {
		return err
	}
	if actor.ID == "" {
		return NewServiceError(KindUnauthorized, opDeleteSocialLink, reasonMissingActor, ErrMissingActor)
	}

	db := s.db.WithContext(ctx)
	result := db.
		Where("id = ? AND biolink_id IN (?)", socialLinkID.String(), ownedBiolinkIDs(db, actor.ID)).
		Delete(&SocialLink{})
	if result.Error != nil {
		return s.internal(opDeleteSocialLink, reasonDeleteFailed, result.Error, zap.String(fieldSocialLinkID, socialLinkID.String()))
	}
	if result.RowsAffected == 0 {
		return NewServiceError(KindNotFound, opDeleteSocialLink, reasonNotFound, ErrResourceNotFound)
	}
	return nil
}

// ReorderSocialLinks is the social link counterpart of ReorderLinks.
func (s *Service) ReorderSocialLinks(ctx context.Context, actor Actor, biolinkID ResourceID, updates []PositionUpdate) error {
	if err := s.ready(opReorderSocialLink); err != nil {
		return err
	}
	return s.reorder(ctx, opReorderSocialLink, &SocialLink{}, actor, biolinkID, updates)
}
