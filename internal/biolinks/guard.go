package biolinks

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ResourceKind names the entity a ResourceRef points at.
type ResourceKind string

const (
	ResourceBiolink    ResourceKind = "biolink"
	ResourceLink       ResourceKind = "link"
	ResourceSocialLink ResourceKind = "social_link"
)

var (
	// ErrResourceNotFound covers both missing resources and resources owned by another user.
	ErrResourceNotFound = errors.New("biolinks: resource not found")
	// ErrMissingActor indicates that no actor identity accompanied the request.
	ErrMissingActor = errors.New("biolinks: actor identity required")
	// ErrUnknownResourceKind indicates an unsupported ResourceRef kind.
	ErrUnknownResourceKind = errors.New("biolinks: unknown resource kind")
)

// ResourceRef points at a biolink or one of its children.
type ResourceRef struct {
	Kind ResourceKind
	ID   ResourceID
}

// Guard decides whether an actor owns a resource by walking the ownership chain to the user.
type Guard struct {
	db *gorm.DB
}

// NewGuard constructs a Guard over the provided database handle.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// Authorize returns nil when actor owns the referenced resource.
// Missing and foreign resources both yield ErrResourceNotFound.
func (g *Guard) Authorize(ctx context.Context, actor Actor, ref ResourceRef) error {
	tx := g.db.WithContext(ctx)
	var err error
	switch ref.Kind {
	case ResourceBiolink:
		_, err = g.OwnedBiolink(tx, actor, ref.ID)
	case ResourceLink:
		_, err = g.OwnedLink(tx, actor, ref.ID)
	case ResourceSocialLink:
		_, err = g.OwnedSocialLink(tx, actor, ref.ID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownResourceKind, ref.Kind)
	}
	return err
}

// OwnedBiolink loads the biolink when actor owns it.
func (g *Guard) OwnedBiolink(tx *gorm.DB, actor Actor, id ResourceID) (Biolink, error) {
	if actor.ID == "" {
		return Biolink{}, ErrMissingActor
	}
	var biolink Biolink
	err := tx.Where("id = ? AND owner_id = ?", id.String(), actor.ID.String()).Take(&biolink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Biolink{}, ErrResourceNotFound
	}
	if err != nil {
		return Biolink{}, err
	}
	return biolink, nil
}

// OwnedLink loads the link when its parent biolink belongs to actor.
func (g *Guard) OwnedLink(tx *gorm.DB, actor Actor, id ResourceID) (Link, error) {
	if actor.ID == "" {
		return Link{}, ErrMissingActor
	}
	var link Link
	err := tx.Where("id = ? AND biolink_id IN (?)", id.String(), ownedBiolinkIDs(tx, actor.ID)).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Link{}, ErrResourceNotFound
	}
	if err != nil {
		return Link{}, err
	}
	return link, nil
}

// OwnedSocialLink loads the social link when its parent biolink belongs to actor.
func (g *Guard) OwnedSocialLink(tx *gorm.DB, actor Actor, id ResourceID) (SocialLink, error) {
	if actor.ID == "" {
		return SocialLink{}, ErrMissingActor
	}
	var socialLink SocialLink
	err := tx.Where("id = ? AND biolink_id IN (?)", id.String(), ownedBiolinkIDs(tx, actor.ID)).Take(&socialLink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SocialLink{}, ErrResourceNotFound
	}
	if err != nil {
		return SocialLink{}, err
	}
	return socialLink, nil
}

// ownedBiolinkIDs is a subquery selecting the ids of every biolink owned by owner.
// Embedding it in UPDATE/DELETE statements makes the ownership check atomic with the write.
func ownedBiolinkIDs(tx *gorm.DB, owner UserID) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Model(&Biolink{}).
		Select("id").
		Where("owner_id = ?", owner.String())
}
