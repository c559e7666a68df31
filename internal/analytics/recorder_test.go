package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biolinkhq/biolink/internal/biolinks"
)

func TestRecordViewAppendsEvent(t *testing.T) {
	db := newTestDatabase(t)
	clock := &movableClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := newTestRecorder(t, db, clock)
	seedBiolink(t, db, "bio-1", "user-1", "alice")

	if err := recorder.RecordView(context.Background(), "bio-1", NewVisit("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "https://www.instagram.com/p/abc")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var event biolinks.AnalyticsEvent
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("failed to load event: %v", err)
	}
	if event.EventType != biolinks.EventTypeView || event.LinkID != nil {
		t.Fatalf("unexpected event %#v", event)
	}
	if event.Device == nil || *event.Device != DeviceMobile {
		t.Fatalf("unexpected device %v", event.Device)
	}
	if event.Referrer == nil || *event.Referrer != "instagram.com" {
		t.Fatalf("unexpected referrer %v", event.Referrer)
	}
	if event.CreatedAtSeconds != clock.now.Unix() {
		t.Fatalf("unexpected timestamp %d", event.CreatedAtSeconds)
	}

	if err := recorder.RecordView(context.Background(), "", Visit{}); biolinks.KindOf(err) != biolinks.KindInvalidInput {
		t.Fatalf("expected invalid input for missing biolink, got %v", err)
	}
}

func TestRecordClickValidatesLink(t *testing.T) {
	db := newTestDatabase(t)
	clock := &movableClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := newTestRecorder(t, db, clock)
	seedBiolink(t, db, "bio-1", "user-1", "alice")
	seedBiolink(t, db, "bio-2", "user-2", "bob")
	seedLink(t, db, "link-1", "bio-1", 0)
	seedLink(t, db, "link-2", "bio-2", 0)

	if err := recorder.RecordClick(context.Background(), "bio-1", "link-1", Visit{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := recorder.RecordClick(context.Background(), "bio-1", "link-2", Visit{})
	if biolinks.KindOf(err) != biolinks.KindInvalidInput || !errors.Is(err, ErrLinkNotInBiolink) {
		t.Fatalf("expected foreign link rejection, got %v", err)
	}
	if err := recorder.RecordClick(context.Background(), "bio-1", "", Visit{}); !errors.Is(err, ErrMissingLinkID) {
		t.Fatalf("expected missing link error, got %v", err)
	}

	var clicks int64
	if err := db.Model(&biolinks.AnalyticsEvent{}).Where("event_type = ?", biolinks.EventTypeClick).Count(&clicks).Error; err != nil {
		t.Fatalf("failed to count clicks: %v", err)
	}
	if clicks != 1 {
		t.Fatalf("expected exactly one click, got %d", clicks)
	}
}

func TestRecordQrScan(t *testing.T) {
	db := newTestDatabase(t)
	clock := &movableClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	recorder := newTestRecorder(t, db, clock)
	seedBiolink(t, db, "bio-1", "user-1", "alice")

	if err := recorder.RecordQrScan(context.Background(), "bio-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var scan biolinks.QrScan
	if err := db.First(&scan).Error; err != nil {
		t.Fatalf("failed to load scan: %v", err)
	}
	if scan.BiolinkID != "bio-1" || scan.ScannedAtSeconds != clock.now.Unix() {
		t.Fatalf("unexpected scan %#v", scan)
	}
}

func TestNewRecorderRequiresDependencies(t *testing.T) {
	if _, err := NewRecorder(RecorderConfig{}); biolinks.CodeOf(err) != "analytics.recorder.new.missing_database" {
		t.Fatalf("unexpected error %v", err)
	}
	db := newTestDatabase(t)
	if _, err := NewRecorder(RecorderConfig{Database: db}); biolinks.CodeOf(err) != "analytics.recorder.new.missing_id_provider" {
		t.Fatalf("unexpected error %v", err)
	}
}
