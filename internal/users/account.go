package users

import (
	"strings"
	"time"
)

// Account is a registered user. Credentials live with the external identity provider.
type Account struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email      string    `gorm:"column:email;size:320;not null;uniqueIndex:idx_accounts_email"`
	Name       string    `gorm:"column:name;size:320"`
	IsAdmin    bool      `gorm:"column:is_admin;not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing accounts.
func (Account) TableName() string {
	return "accounts"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(normalize(value))
}
