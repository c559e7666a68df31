package biolinks

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	maxIdentifierLength = 190
	maxUsernameLength   = 64
	// DefaultTitle is applied when a biolink is created without a title.
	DefaultTitle = "My Biolink"
)

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("biolinks: invalid user id")
	// ErrInvalidResourceID indicates that a resource identifier is empty or exceeds storage bounds.
	ErrInvalidResourceID = errors.New("biolinks: invalid resource id")
	// ErrInvalidUsername indicates that a biolink username is empty, too long, or contains whitespace.
	ErrInvalidUsername = errors.New("biolinks: invalid username")
)

// UserID represents a validated owner identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// ResourceID identifies a biolink, link, social link, or subscriber row.
type ResourceID string

// NewResourceID validates raw input and returns a ResourceID.
func NewResourceID(rawInput string) (ResourceID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidResourceID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidResourceID, maxIdentifierLength)
	}
	return ResourceID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ResourceID) String() string {
	return string(id)
}

// Username is the public handle of a biolink. Comparison is exact and case-sensitive.
type Username string

// NewUsername validates raw input without normalizing it.
func NewUsername(rawInput string) (Username, error) {
	if strings.TrimSpace(rawInput) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if len(rawInput) > maxUsernameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUsername, maxUsernameLength)
	}
	if strings.IndexFunc(rawInput, func(r rune) bool { return unicode.IsSpace(r) || r == '/' }) >= 0 {
		return "", fmt.Errorf("%w: contains whitespace or slash", ErrInvalidUsername)
	}
	return Username(rawInput), nil
}

// String returns the username.
func (u Username) String() string {
	return string(u)
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID      UserID
	IsAdmin bool
}

// EventType enumerates analytics event kinds.
type EventType string

const (
	// EventTypeView marks a public page load.
	EventTypeView EventType = "view"
	// EventTypeClick marks a link activation.
	EventTypeClick EventType = "click"
)

// Biolink is a user's public profile page.
type Biolink struct {
	ID                 string  `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID            string  `gorm:"column:owner_id;size:190;not null;index:idx_biolinks_owner_created,priority:1"`
	Username           string  `gorm:"column:username;size:64;not null;uniqueIndex:idx_biolinks_username"`
	Title              string  `gorm:"column:title;size:320;not null"`
	Bio                string  `gorm:"column:bio;type:text;not null"`
	ThemeJSON          string  `gorm:"column:theme_json;type:text;not null"`
	AvatarURL          *string `gorm:"column:avatar_url;size:2048"`
	Published          bool    `gorm:"column:published;not null"`
	CustomDomain       *string `gorm:"column:custom_domain;size:253"`
	DomainVerified     bool    `gorm:"column:domain_verified;not null"`
	EnableEmailCapture bool    `gorm:"column:enable_email_capture;not null"`
	CreatedAtSeconds   int64   `gorm:"column:created_at_s;not null;index:idx_biolinks_owner_created,priority:2"`
	UpdatedAtSeconds   int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Biolink) TableName() string {
	return "biolinks"
}

// Theme decodes the stored theme blob. Malformed blobs decode to an empty theme.
func (b Biolink) Theme() Theme {
	theme, err := DecodeTheme(b.ThemeJSON)
	if err != nil {
		return Theme{}
	}
	return theme
}

// Link is a clickable entry on a biolink.
type Link struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null"`
	BiolinkID        string  `gorm:"column:biolink_id;size:190;not null;index:idx_links_biolink_position,priority:1"`
	Title            string  `gorm:"column:title;size:320;not null"`
	URL              string  `gorm:"column:url;size:2048;not null"`
	Icon             *string `gorm:"column:icon;size:190"`
	Position         int64   `gorm:"column:position;not null;index:idx_links_biolink_position,priority:2"`
	Visible          bool    `gorm:"column:visible;not null"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Link) TableName() string {
	return "links"
}

// SocialLink is a platform profile link shown on a biolink.
type SocialLink struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	BiolinkID        string `gorm:"column:biolink_id;size:190;not null;index:idx_social_links_biolink_position,priority:1"`
	Platform         string `gorm:"column:platform;size:64;not null"`
	URL              string `gorm:"column:url;size:2048;not null"`
	Position         int64  `gorm:"column:position;not null;index:idx_social_links_biolink_position,priority:2"`
	Visible          bool   `gorm:"column:visible;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SocialLink) TableName() string {
	return "social_links"
}

// EmailSubscriber is an address captured from a public page.
type EmailSubscriber struct {
	ID                  string `gorm:"column:id;primaryKey;size:190;not null"`
	BiolinkID           string `gorm:"column:biolink_id;size:190;not null;uniqueIndex:idx_email_subscribers_biolink_email,priority:1"`
	Email               string `gorm:"column:email;size:320;not null;uniqueIndex:idx_email_subscribers_biolink_email,priority:2"`
	SubscribedAtSeconds int64  `gorm:"column:subscribed_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EmailSubscriber) TableName() string {
	return "email_subscribers"
}

// AnalyticsEvent is an append-only view or click record.
type AnalyticsEvent struct {
	ID               string    `gorm:"column:id;primaryKey;size:190;not null"`
	BiolinkID        string    `gorm:"column:biolink_id;size:190;not null;index:idx_analytics_events_biolink_time,priority:1"`
	LinkID           *string   `gorm:"column:link_id;size:190;index"`
	EventType        EventType `gorm:"column:event_type;size:16;not null"`
	Device           *string   `gorm:"column:device;size:32"`
	Referrer         *string   `gorm:"column:referrer;size:253"`
	CreatedAtSeconds int64     `gorm:"column:created_at_s;not null;index:idx_analytics_events_biolink_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

// QrScan is an append-only record of a QR code scan.
type QrScan struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	BiolinkID        string `gorm:"column:biolink_id;size:190;not null;index:idx_qr_scans_biolink_time,priority:1"`
	ScannedAtSeconds int64  `gorm:"column:scanned_at_s;not null;index:idx_qr_scans_biolink_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (QrScan) TableName() string {
	return "qr_scans"
}

// Models lists every persisted entity for schema migration.
func Models() []interface{} {
	return []interface{}{
		&Biolink{},
		&Link{},
		&SocialLink{},
		&EmailSubscriber{},
		&AnalyticsEvent{},
		&QrScan{},
	}
}
