package server

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/qrcode"
)

func TestAnalyticsOverviewCountsPublicTraffic(t *testing.T) {
	server := newTestServer(t)
	token := server.token(t, "user-1", false)
	created := createBiolinkOverHTTP(t, server, token, "counted")
	link := createLinkOverHTTP(t, server, token, created.ID, "site")
	createLinkOverHTTP(t, server, token, created.ID, "quiet")
	publishOverHTTP(t, server, token, created.ID, "")

	for index := 0; index < 2; index++ {
		expectStatus(t, server.do(t, http.MethodGet, "/public/counted", "", ""), http.StatusOK)
	}
	expectStatus(t, server.do(t, http.MethodPost, "/track-click", "", `{"biolink_id":"`+created.ID+`","link_id":"`+link.ID+`"}`), http.StatusOK)

	response := server.do(t, http.MethodGet, "/analytics/"+created.ID, token, "")
	expectStatus(t, response, http.StatusOK)
	overview := decodeBody[analytics.Overview](t, response.Body.Bytes())
	if overview.Totals.Views != 2 || overview.Totals.Clicks != 1 {
		t.Fatalf("unexpected totals %#v", overview.Totals)
	}
	if len(overview.PerLinkClicks) != 2 || overview.PerLinkClicks[0].LinkID != link.ID || overview.PerLinkClicks[1].Clicks != 0 {
		t.Fatalf("unexpected per link clicks %#v", overview.PerLinkClicks)
	}

	intruder := server.token(t, "intruder", false)
	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID, intruder, ""), http.StatusNotFound)
}

func TestAdvancedAnalyticsValidatesDays(t *testing.T) {
	server := newTestServer(t)
	token := server.token(t, "user-1", false)
	created := createBiolinkOverHTTP(t, server, token, "advanced")

	report := server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced", token, "")
	expectStatus(t, report, http.StatusOK)
	if decodeBody[analytics.Report](t, report.Body.Bytes()).Days != 30 {
		t.Fatalf("expected default window of 30 days")
	}

	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced?days=abc", token, ""), http.StatusBadRequest)
	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced?days=0", token, ""), http.StatusBadRequest)
	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced?days=-3", token, ""), http.StatusBadRequest)
	week := server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced?days=7", token, "")
	expectStatus(t, week, http.StatusOK)
	if decodeBody[analytics.Report](t, week.Body.Bytes()).Days != 7 {
		t.Fatalf("expected requested window of 7 days")
	}
	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced?days=366", token, ""), http.StatusBadRequest)

	intruder := server.token(t, "intruder", false)
	expectStatus(t, server.do(t, http.MethodGet, "/analytics/"+created.ID+"/advanced", intruder, ""), http.StatusForbidden)
}

func TestQrCodeTargetsAndPNG(t *testing.T) {
	server := newTestServer(t)
	token := server.token(t, "user-1", false)
	created := createBiolinkOverHTTP(t, server, token, "qrowner")

	response := server.do(t, http.MethodGet, "/biolinks/"+created.ID+"/qr-code?size=200", token, "")
	expectStatus(t, response, http.StatusOK)
	targets := decodeBody[qrcode.Targets](t, response.Body.Bytes())
	if targets.ScanURL != testBaseURL+"/q/qrowner" || targets.BiolinkURL != testBaseURL+"/public/qrowner" {
		t.Fatalf("unexpected targets %#v", targets)
	}
	if !strings.Contains(targets.QrCodeURL, "size=200x200") {
		t.Fatalf("expected size in image url, got %q", targets.QrCodeURL)
	}

	image := server.do(t, http.MethodGet, "/biolinks/"+created.ID+"/qr-code?format=png", token, "")
	expectStatus(t, image, http.StatusOK)
	if image.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", image.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(image.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png signature")
	}

	expectStatus(t, server.do(t, http.MethodGet, "/biolinks/"+created.ID+"/qr-code?size=5000", token, ""), http.StatusBadRequest)

	intruder := server.token(t, "intruder", false)
	expectStatus(t, server.do(t, http.MethodGet, "/biolinks/"+created.ID+"/qr-code", intruder, ""), http.StatusNotFound)
}

func TestCreateAccountRequiresAdmin(t *testing.T) {
	server := newTestServer(t)
	payload := `{"email":"new@example.com","name":"New"}`

	member := server.token(t, "member", false)
	expectStatus(t, server.do(t, http.MethodPost, "/admin/users", member, payload), http.StatusForbidden)

	admin := server.token(t, "admin", true)
	created := server.do(t, http.MethodPost, "/admin/users", admin, payload)
	expectStatus(t, created, http.StatusCreated)
	if account := decodeBody[accountPayload](t, created.Body.Bytes()); account.Email != "new@example.com" {
		t.Fatalf("unexpected account %#v", account)
	}
	expectStatus(t, server.do(t, http.MethodPost, "/admin/users", admin, payload), http.StatusConflict)
}
