package biolinks

import (
	"context"
	"errors"
	"testing"
)

func TestGuardAuthorize(t *testing.T) {
	service, _ := newTestService(t, []string{"bio-1", "link-1", "social-1"})
	alice := mustActor(t, "user-alice")
	biolink := mustCreateBiolink(t, service, alice, "alice")
	link := mustCreateLink(t, service, alice, biolink.ID, "blog")
	socialLink, err := service.CreateSocialLink(context.Background(), alice, mustResourceID(t, biolink.ID), CreateSocialLinkInput{
		Platform: "github",
		URL:      "https://github.com/alice",
	})
	if err != nil {
		t.Fatalf("failed to create social link: %v", err)
	}

	refs := []ResourceRef{
		{Kind: ResourceBiolink, ID: mustResourceID(t, biolink.ID)},
		{Kind: ResourceLink, ID: mustResourceID(t, link.ID)},
		{Kind: ResourceSocialLink, ID: mustResourceID(t, socialLink.ID)},
	}

	testCases := []struct {
		name    string
		actor   Actor
		wantErr error
	}{
		{name: "owner", actor: alice},
		{name: "other user", actor: mustActor(t, "user-bob"), wantErr: ErrResourceNotFound},
		{name: "anonymous", actor: Actor{}, wantErr: ErrMissingActor},
	}

	guard := service.Guard()
	for _, testCase := range testCases {
		for _, ref := range refs {
			t.Run(testCase.name+"/"+string(ref.Kind), func(t *testing.T) {
				err := guard.Authorize(context.Background(), testCase.actor, ref)
				if testCase.wantErr == nil && err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if testCase.wantErr != nil && !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
			})
		}
	}

	missing := ResourceRef{Kind: ResourceLink, ID: mustResourceID(t, "link-missing")}
	if err := guard.Authorize(context.Background(), alice, missing); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected missing link to be not found, got %v", err)
	}
	if err := guard.Authorize(context.Background(), alice, ResourceRef{Kind: "subscriber", ID: "x"}); !errors.Is(err, ErrUnknownResourceKind) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}
