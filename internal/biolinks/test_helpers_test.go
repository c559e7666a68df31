package biolinks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:biolinks_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1700000600, 0).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to construct biolinks service: %v", err)
	}
	return service, db
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustResourceID(t *testing.T, value string) ResourceID {
	t.Helper()
	id, err := NewResourceID(value)
	if err != nil {
		t.Fatalf("unexpected resource id error: %v", err)
	}
	return id
}

func mustActor(t *testing.T, value string) Actor {
	t.Helper()
	return Actor{ID: mustUserID(t, value)}
}

func mustCreateBiolink(t *testing.T, service *Service, actor Actor, username string) Biolink {
	t.Helper()
	biolink, err := service.CreateBiolink(context.Background(), actor, CreateBiolinkInput{Username: username})
	if err != nil {
		t.Fatalf("failed to create biolink %q: %v", username, err)
	}
	return biolink
}

func mustCreateLink(t *testing.T, service *Service, actor Actor, biolinkID string, title string) Link {
	t.Helper()
	link, err := service.CreateLink(context.Background(), actor, mustResourceID(t, biolinkID), CreateLinkInput{
		Title: title,
		URL:   "https://example.com/" + title,
	})
	if err != nil {
		t.Fatalf("failed to create link %q: %v", title, err)
	}
	return link
}

func expectKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func stringPointer(value string) *string {
	return &value
}
