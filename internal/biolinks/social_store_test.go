package biolinks

import (
	"context"
	"testing"
)

func TestCreateSocialLinkDefaults(t *testing.T) {
	service, _ := newTestService(t, []string{"bio-1", "social-1", "social-2", "social-3"})
	alice := mustActor(t, "user-alice")
	biolink := mustCreateBiolink(t, service, alice, "alice")
	biolinkID := mustResourceID(t, biolink.ID)

	first, err := service.CreateSocialLink(context.Background(), alice, biolinkID, CreateSocialLinkInput{
		Platform: "github",
		URL:      "https://github.com/alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Position != 0 || !first.Visible {
		t.Fatalf("unexpected defaults: position=%d visible=%t", first.Position, first.Visible)
	}

	explicit := int64(7)
	hidden := false
	second, err := service.CreateSocialLink(context.Background(), alice, biolinkID, CreateSocialLinkInput{
		Platform: "mastodon",
		URL:      "https://mastodon.social/@alice",
		Position: &explicit,
		Visible:  &hidden,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Position != 7 || second.Visible {
		t.Fatalf("explicit values ignored: position=%d visible=%t", second.Position, second.Visible)
	}

	third, err := service.CreateSocialLink(context.Background(), alice, biolinkID, CreateSocialLinkInput{
		Platform: "bluesky",
		URL:      "https://bsky.app/profile/alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Position != 8 {
		t.Fatalf("expected position 8, got %d", third.Position)
	}

	listed, err := service.ListSocialLinks(context.Background(), biolinkID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != first.ID || listed[2].ID != third.ID {
		t.Fatalf("unexpected listing %#v", listed)
	}
}

func TestListSocialLinksRequiresBiolinkID(t *testing.T) {
	service, _ := newTestService(t, nil)
	_, err := service.ListSocialLinks(context.Background(), "")
	expectKind(t, err, KindInvalidInput)
}

func TestSocialLinkOwnershipIsolation(t *testing.T) {
	service, _ := newTestService(t, []string{"bio-1", "social-1"})
	alice := mustActor(t, "user-alice")
	bob := mustActor(t, "user-bob")
	biolink := mustCreateBiolink(t, service, alice, "alice")
	socialLink, err := service.CreateSocialLink(context.Background(), alice, mustResourceID(t, biolink.ID), CreateSocialLinkInput{
		Platform: "github",
		URL:      "https://github.com/alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	socialID := mustResourceID(t, socialLink.ID)

	_, err = service.CreateSocialLink(context.Background(), bob, mustResourceID(t, biolink.ID), CreateSocialLinkInput{
		Platform: "github",
		URL:      "https://github.com/bob",
	})
	expectKind(t, err, KindNotFound)

	_, err = service.UpdateSocialLink(context.Background(), bob, socialID, SocialLinkPatch{URL: Some("https://github.com/bob")})
	expectKind(t, err, KindNotFound)

	err = service.DeleteSocialLink(context.Background(), bob, socialID)
	expectKind(t, err, KindNotFound)

	updated, err := service.UpdateSocialLink(context.Background(), alice, socialID, SocialLinkPatch{Position: Some(int64(3))})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Position != 3 || updated.URL != "https://github.com/alice" {
		t.Fatalf("unexpected update result %#v", updated)
	}

	if err := service.DeleteSocialLink(context.Background(), alice, socialID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
}

func TestReorderSocialLinksIsAtomic(t *testing.T) {
	service, _ := newTestService(t, []string{"bio-1", "social-1", "social-2"})
	alice := mustActor(t, "user-alice")
	biolink := mustCreateBiolink(t, service, alice, "alice")
	biolinkID := mustResourceID(t, biolink.ID)
	first, _ := service.CreateSocialLink(context.Background(), alice, biolinkID, CreateSocialLinkInput{Platform: "a", URL: "https://a.example"})
	second, _ := service.CreateSocialLink(context.Background(), alice, biolinkID, CreateSocialLinkInput{Platform: "b", URL: "https://b.example"})

	err := service.ReorderSocialLinks(context.Background(), alice, biolinkID, []PositionUpdate{
		{ID: mustResourceID(t, second.ID), Position: 0},
		{ID: mustResourceID(t, "social-missing"), Position: 1},
	})
	expectKind(t, err, KindNotFound)

	listed, err := service.ListSocialLinks(context.Background(), biolinkID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if listed[0].ID != first.ID {
		t.Fatalf("rejected reorder changed order")
	}

	err = service.ReorderSocialLinks(context.Background(), alice, biolinkID, []PositionUpdate{
		{ID: mustResourceID(t, second.ID), Position: 0},
		{ID: mustResourceID(t, first.ID), Position: 1},
	})
	if err != nil {
		t.Fatalf("unexpected reorder error: %v", err)
	}
	listed, _ = service.ListSocialLinks(context.Background(), biolinkID)
	if listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("unexpected order after reorder")
	}
}
