package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/biolinkhq/biolink/internal/biolinks"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// sequentialIDGenerator issues prefix-1, prefix-2, ...
type sequentialIDGenerator struct {
	prefix string
	next   int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

// movableClock lets a test record events on different days.
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time {
	return c.now
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:analytics_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(biolinks.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestRecorder(t *testing.T, db *gorm.DB, clock *movableClock) *Recorder {
	t.Helper()
	recorder, err := NewRecorder(RecorderConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequentialIDGenerator{prefix: "event"},
	})
	if err != nil {
		t.Fatalf("failed to construct recorder: %v", err)
	}
	return recorder
}

func newTestAggregator(t *testing.T, db *gorm.DB, clock *movableClock) *Aggregator {
	t.Helper()
	aggregator, err := NewAggregator(AggregatorConfig{
		Database: db,
		Clock:    clock.Now,
		Limits:   Limits{TopLinks: 2, Referrers: 2},
	})
	if err != nil {
		t.Fatalf("failed to construct aggregator: %v", err)
	}
	return aggregator
}

func seedBiolink(t *testing.T, db *gorm.DB, id, owner, username string) {
	t.Helper()
	biolink := biolinks.Biolink{
		ID:        id,
		OwnerID:   owner,
		Username:  username,
		Title:     biolinks.DefaultTitle,
		ThemeJSON: "{}",
		Published: true,
	}
	if err := db.Create(&biolink).Error; err != nil {
		t.Fatalf("failed to seed biolink: %v", err)
	}
}

func seedLink(t *testing.T, db *gorm.DB, id, biolinkID string, position int64) {
	t.Helper()
	link := biolinks.Link{
		ID:        id,
		BiolinkID: biolinkID,
		Title:     "title " + id,
		URL:       "https://example.com/" + id,
		Position:  position,
		Visible:   true,
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("failed to seed link: %v", err)
	}
}
