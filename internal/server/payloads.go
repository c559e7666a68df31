package server

import (
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/biolinkhq/biolink/internal/users"
)

type biolinkPayload struct {
	ID                 string         `json:"id"`
	OwnerID            string         `json:"owner_id"`
	Username           string         `json:"username"`
	Title              string         `json:"title"`
	Bio                string         `json:"bio"`
	Theme              biolinks.Theme `json:"theme"`
	AvatarURL          *string        `json:"avatar_url"`
	Published          bool           `json:"published"`
	CustomDomain       *string        `json:"custom_domain"`
	DomainVerified     bool           `json:"domain_verified"`
	EnableEmailCapture bool           `json:"enable_email_capture"`
	CreatedAtSeconds   int64          `json:"created_at_s"`
	UpdatedAtSeconds   int64          `json:"updated_at_s"`
}

type biolinkDetailPayload struct {
	biolinkPayload
	Links []linkPayload `json:"links"`
}

type linkPayload struct {
	ID               string  `json:"id"`
	BiolinkID        string  `json:"biolink_id"`
	Title            string  `json:"title"`
	URL              string  `json:"url"`
	Icon             *string `json:"icon"`
	Position         int64   `json:"position"`
	Visible          bool    `json:"visible"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

type socialLinkPayload struct {
	ID        string `json:"id"`
	BiolinkID string `json:"biolink_id"`
	Platform  string `json:"platform"`
	URL       string `json:"url"`
	Position  int64  `json:"position"`
	Visible   bool   `json:"visible"`
}

type subscriberPayload struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	SubscribedAtSeconds int64  `json:"subscribed_at_s"`
}

type accountPayload struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

type createBiolinkRequest struct {
	Username string `json:"username" binding:"required"`
	Title    string `json:"title"`
	Bio      string `json:"bio"`
}

type createLinkRequest struct {
	Title string  `json:"title" binding:"required"`
	URL   string  `json:"url" binding:"required"`
	Icon  *string `json:"icon"`
}

type createSocialLinkRequest struct {
	Platform string `json:"platform" binding:"required"`
	URL      string `json:"url" binding:"required"`
	Position *int64 `json:"position"`
	Visible  *bool  `json:"visible"`
}

type positionPayload struct {
	ID       string `json:"id" binding:"required"`
	Position *int64 `json:"position" binding:"required"`
}

type reorderRequest struct {
	Links []positionPayload `json:"links" binding:"required,dive"`
}

type addSubscriberRequest struct {
	BiolinkID string `json:"biolink_id" binding:"required"`
	Email     string `json:"email" binding:"required"`
}

type trackClickRequest struct {
	BiolinkID string `json:"biolink_id" binding:"required"`
	LinkID    string `json:"link_id" binding:"required"`
}

type createAccountRequest struct {
	Email   string `json:"email" binding:"required"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

func presentBiolink(stored biolinks.Biolink) biolinkPayload {
	return biolinkPayload{
		ID:                 stored.ID,
		OwnerID:            stored.OwnerID,
		Username:           stored.Username,
		Title:              stored.Title,
		Bio:                stored.Bio,
		Theme:              stored.Theme(),
		AvatarURL:          stored.AvatarURL,
		Published:          stored.Published,
		CustomDomain:       stored.CustomDomain,
		DomainVerified:     stored.DomainVerified,
		EnableEmailCapture: stored.EnableEmailCapture,
		CreatedAtSeconds:   stored.CreatedAtSeconds,
		UpdatedAtSeconds:   stored.UpdatedAtSeconds,
	}
}

func presentLink(stored biolinks.Link) linkPayload {
	return linkPayload{
		ID:               stored.ID,
		BiolinkID:        stored.BiolinkID,
		Title:            stored.Title,
		URL:              stored.URL,
		Icon:             stored.Icon,
		Position:         stored.Position,
		Visible:          stored.Visible,
		CreatedAtSeconds: stored.CreatedAtSeconds,
	}
}

func presentLinks(stored []biolinks.Link) []linkPayload {
	payload := make([]linkPayload, 0, len(stored))
	for _, link := range stored {
		payload = append(payload, presentLink(link))
	}
	return payload
}

func presentSocialLink(stored biolinks.SocialLink) socialLinkPayload {
	return socialLinkPayload{
		ID:        stored.ID,
		BiolinkID: stored.BiolinkID,
		Platform:  stored.Platform,
		URL:       stored.URL,
		Position:  stored.Position,
		Visible:   stored.Visible,
	}
}

func presentSubscriber(stored biolinks.EmailSubscriber) subscriberPayload {
	return subscriberPayload{
		ID:                  stored.ID,
		Email:               stored.Email,
		SubscribedAtSeconds: stored.SubscribedAtSeconds,
	}
}

func presentAccount(stored users.Account) accountPayload {
	return accountPayload{
		ID:      stored.ID,
		Email:   stored.Email,
		Name:    stored.Name,
		IsAdmin: stored.IsAdmin,
	}
}

func positionUpdates(request reorderRequest) []biolinks.PositionUpdate {
	updates := make([]biolinks.PositionUpdate, 0, len(request.Links))
	for _, entry := range request.Links {
		updates = append(updates, biolinks.PositionUpdate{
			ID:       biolinks.ResourceID(entry.ID),
			Position: *entry.Position,
		})
	}
	return updates
}
