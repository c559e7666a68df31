package biolinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateLink   = "biolinks.create_link"
	opUpdateLink   = "biolinks.update_link"
	opDeleteLink   = "biolinks.delete_link"
	opReorderLinks = "biolinks.reorder_links"

	reasonForeignLink   = "link_not_found"
	reasonDuplicateLink = "duplicate_link"
)

var (
	// ErrForeignLink indicates a reorder entry that does not belong to the target biolink.
	ErrForeignLink = errors.New("biolinks: link does not belong to biolink")
	// ErrDuplicateLink indicates a reorder request naming the same row twice.
	ErrDuplicateLink = errors.New("biolinks: duplicate link in reorder request")
)

// CreateLinkInput describes a new link.
type CreateLinkInput struct {
	Title string
	URL   string
	Icon  *string
}

// PositionUpdate assigns a display position to a link or social link.
type PositionUpdate struct {
	ID       ResourceID
	Position int64
}

// CreateLink appends a link to an owned biolink at one past the current maximum position.
func (s *Service) CreateLink(ctx context.Context, actor Actor, biolinkID ResourceID, input CreateLinkInput) (Link, error) {
	if err := s.ready(opCreateLink); err != nil {
		return Link{}, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return Link{}, invalidInput(opCreateLink, fmt.Errorf("%w: title", ErrEmptyField))
	}
	if strings.TrimSpace(input.URL) == "" {
		return Link{}, invalidInput(opCreateLink, fmt.Errorf("%w: url", ErrEmptyField))
	}

	id, err := s.newID(opCreateLink)
	if err != nil {
		return Link{}, err
	}

	var created Link
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.guard.OwnedBiolink(tx, actor, biolinkID); err != nil {
			return s.guardFailure(opCreateLink, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		position, err := nextPosition(tx, &Link{}, biolinkID)
		if err != nil {
			return s.internal(opCreateLink, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		created = Link{
			ID:               id,
			BiolinkID:        biolinkID.String(),
			Title:            input.Title,
			URL:              input.URL,
			Icon:             input.Icon,
			Position:         position,
			Visible:          true,
			CreatedAtSeconds: s.nowSeconds(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return s.internal(opCreateLink, reasonInsertFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		return nil
	})
	if err := s.finish(opCreateLink, txErr); err != nil {
		return Link{}, err
	}
	return created, nil
}

// UpdateLink applies the fields present in patch to a link whose biolink actor owns.
func (s *Service) UpdateLink(ctx context.Context, actor Actor, linkID ResourceID, patch LinkPatch) (Link, error) {
	if err := s.ready(opUpdateLink); err != nil {
		return Link{}, err
	}

	var updated Link
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		columns, err := patch.columns()
		if err != nil {
			return invalidInput(opUpdateLink, err)
		}
		if len(columns) == 0 {
			if _, err := s.guard.OwnedLink(tx, actor, linkID); err != nil {
				return s.guardFailure(opUpdateLink, err, zap.String(fieldLinkID, linkID.String()))
			}
			return NewServiceError(KindInvalidInput, opUpdateLink, reasonNoFields, ErrNoFields)
		}
		if actor.ID == "" {
			return NewServiceError(KindUnauthorized, opUpdateLink, reasonMissingActor, ErrMissingActor)
		}

		result := tx.Model(&Link{}).
			Where("id = ? AND biolink_id IN (?)", linkID.String(), ownedBiolinkIDs(tx, actor.ID)).
			Updates(columns)
		if result.Error != nil {
			return s.internal(opUpdateLink, reasonUpdateFailed, result.Error, zap.String(fieldLinkID, linkID.String()))
		}
		if result.RowsAffected == 0 {
			return NewServiceError(KindNotFound, opUpdateLink, reasonNotFound, ErrResourceNotFound)
		}
		reloaded, err := s.guard.OwnedLink(tx, actor, linkID)
		if err != nil {
			return s.guardFailure(opUpdateLink, err, zap.String(fieldLinkID, linkID.String()))
		}
		updated = reloaded
		return nil
	})
	if err := s.finish(opUpdateLink, txErr); err != nil {
		return Link{}, err
	}
	return updated, nil
}

// DeleteLink removes a link. Remaining positions are not renumbered.
func (s *Service) DeleteLink(ctx context.Context, actor Actor, linkID ResourceID) error {
	if err := s.ready(opDeleteLink); err != nil {
		return err
	}
	if actor.ID == "" {
		return NewServiceError(KindUnauthorized, opDeleteLink, reasonMissingActor, ErrMissingActor)
	}

	db := s.db.WithContext(ctx)
	result := db.
		Where("id = ? AND biolink_id IN (?)", linkID.String(), ownedBiolinkIDs(db, actor.ID)).
		Delete(&Link{})
	if result.Error != nil {
		return s.internal(opDeleteLink, reasonDeleteFailed, result.Error, zap.String(fieldLinkID, linkID.String()))
	}
	if result.RowsAffected == 0 {
		return NewServiceError(KindNotFound, opDeleteLink, reasonNotFound, ErrResourceNotFound)
	}
	return nil
}

// ReorderLinks applies every position in one transaction. When any entry names a link
// outside the biolink the whole batch is rejected and no position changes.
func (s *Service) ReorderLinks(ctx context.Context, actor Actor, biolinkID ResourceID, updates []PositionUpdate) error {
	if err := s.ready(opReorderLinks); err != nil {
		return err
	}
	return s.reorder(ctx, opReorderLinks, &Link{}, actor, biolinkID, updates)
}

func (s *Service) reorder(ctx context.Context, operation string, model interface{}, actor Actor, biolinkID ResourceID, updates []PositionUpdate) error {
	ids := make([]string, 0, len(updates))
	seen := make(map[ResourceID]struct{}, len(updates))
	for _, update := range updates {
		if update.ID == "" {
			return invalidInput(operation, fmt.Errorf("%w: empty", ErrInvalidResourceID))
		}
		if _, duplicate := seen[update.ID]; duplicate {
			return NewServiceError(KindInvalidInput, operation, reasonDuplicateLink, fmt.Errorf("%w: %s", ErrDuplicateLink, update.ID))
		}
		seen[update.ID] = struct{}{}
		ids = append(ids, update.ID.String())
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.guard.OwnedBiolink(tx, actor, biolinkID); err != nil {
			return s.guardFailure(operation, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		if len(ids) == 0 {
			return nil
		}

		var matched int64
		if err := tx.Model(model).
			Where("biolink_id = ? AND id IN ?", biolinkID.String(), ids).
			Count(&matched).Error; err != nil {
			return s.internal(operation, reasonQueryFailed, err, zap.String(fieldBiolinkID, biolinkID.String()))
		}
		if matched != int64(len(ids)) {
			return NewServiceError(KindNotFound, operation, reasonForeignLink, ErrForeignLink)
		}

		for _, update := range updates {
			if err := tx.Model(model).
				Where("id = ? AND biolink_id = ?", update.ID.String(), biolinkID.String()).
				Update("position", update.Position).Error; err != nil {
				return s.internal(operation, reasonUpdateFailed, err,
					zap.String(fieldBiolinkID, biolinkID.String()),
					zap.String(fieldLinkID, update.ID.String()))
			}
		}
		return nil
	})
	return s.finish(operation, txErr)
}

// nextPosition returns one past the highest position in the biolink, or 0 when it has none.
func nextPosition(tx *gorm.DB, model interface{}, biolinkID ResourceID) (int64, error) {
	var maxPosition int64
	err := tx.Model(model).
		Where("biolink_id = ?", biolinkID.String()).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPosition).Error
	if err != nil {
		return 0, err
	}
	return maxPosition + 1, nil
}
