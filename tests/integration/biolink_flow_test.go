package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/auth"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/biolinkhq/biolink/internal/database"
	"github.com/biolinkhq/biolink/internal/public"
	"github.com/biolinkhq/biolink/internal/qrcode"
	"github.com/biolinkhq/biolink/internal/server"
	"github.com/biolinkhq/biolink/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionCookieName    = "biolink_session"
	sessionUserID        = "user-alice"
	publicBaseURL        = "https://bio.example.com"
	jsonContentType      = "application/json"
)

type flowClient struct {
	t       *testing.T
	baseURL string
	cookie  *http.Cookie
	http    *http.Client
}

func (c *flowClient) call(method, path string, body any, authenticated bool) (*http.Response, []byte) {
	c.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
	}
	request, err := http.NewRequest(method, c.baseURL+path, &payload)
	if err != nil {
		c.t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	if authenticated {
		request.AddCookie(c.cookie)
	}
	response, err := c.http.Do(request)
	if err != nil {
		c.t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(response.Body); err != nil {
		c.t.Fatalf("failed to read body: %v", err)
	}
	return response, raw.Bytes()
}

func (c *flowClient) expect(method, path string, body any, authenticated bool, status int, target any) {
	c.t.Helper()
	response, raw := c.call(method, path, body, authenticated)
	if response.StatusCode != status {
		c.t.Fatalf("%s %s: expected %d, got %d: %s", method, path, status, response.StatusCode, raw)
	}
	if target != nil {
		if err := json.Unmarshal(raw, target); err != nil {
			c.t.Fatalf("%s %s: failed to decode %s: %v", method, path, raw, err)
		}
	}
}

func newFlowClient(testContext *testing.T) *flowClient {
	testContext.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "integration.db"), logger)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	testContext.Cleanup(func() { _ = sqlDB.Close() })

	idProvider := biolinks.NewUUIDProvider()
	store, err := biolinks.NewService(biolinks.ServiceConfig{Database: db, IDProvider: idProvider, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	recorder, err := analytics.NewRecorder(analytics.RecorderConfig{Database: db, IDProvider: idProvider, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build recorder: %v", err)
	}
	aggregator, err := analytics.NewAggregator(analytics.AggregatorConfig{Database: db, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build aggregator: %v", err)
	}
	resolver, err := public.NewResolver(public.Config{Database: db, Recorder: recorder, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build resolver: %v", err)
	}
	qrCodes, err := qrcode.NewGenerator(qrcode.Config{BaseURL: publicBaseURL})
	if err != nil {
		testContext.Fatalf("failed to build qr generator: %v", err)
	}
	accounts, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: idProvider, Logger: logger})
	if err != nil {
		testContext.Fatalf("failed to build account registry: %v", err)
	}
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		CookieName:    sessionCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to construct session validator: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:   sessions,
		Accounts:   accounts,
		Store:      store,
		Recorder:   recorder,
		Aggregator: aggregator,
		Resolver:   resolver,
		QrCodes:    qrCodes,
		Logger:     logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(sessionSigningSecret),
		TokenTTL:      time.Hour,
	})
	if err != nil {
		testContext.Fatalf("failed to construct token issuer: %v", err)
	}
	token, _, err := issuer.IssueSessionToken(context.Background(), auth.Identity{
		UserID: sessionUserID,
		Email:  "alice@example.com",
	})
	if err != nil {
		testContext.Fatalf("failed to issue token: %v", err)
	}

	client := testServer.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &flowClient{
		t:       testContext,
		baseURL: testServer.URL,
		cookie:  &http.Cookie{Name: sessionCookieName, Value: token},
		http:    client,
	}
}

type idPayload struct {
	ID string `json:"id"`
}

func TestBiolinkLifecycleFlow(testContext *testing.T) {
	client := newFlowClient(testContext)

	var created idPayload
	client.expect(http.MethodPost, "/biolinks", map[string]any{"username": "alice"}, true, http.StatusCreated, &created)

	var first, second idPayload
	client.expect(http.MethodPost, "/biolinks/"+created.ID+"/links", map[string]any{"title": "L1", "url": "https://one.example.com"}, true, http.StatusCreated, &first)
	client.expect(http.MethodPost, "/biolinks/"+created.ID+"/links", map[string]any{"title": "L2", "url": "https://two.example.com"}, true, http.StatusCreated, &second)

	client.expect(http.MethodPut, "/biolinks/"+created.ID+"/links/order", map[string]any{
		"links": []map[string]any{{"id": second.ID, "position": 0}, {"id": first.ID, "position": 1}},
	}, true, http.StatusNoContent, nil)

	var detail struct {
		Links []idPayload `json:"links"`
	}
	client.expect(http.MethodGet, "/biolinks/"+created.ID, nil, true, http.StatusOK, &detail)
	if len(detail.Links) != 2 || detail.Links[0].ID != second.ID || detail.Links[1].ID != first.ID {
		testContext.Fatalf("expected links ordered [L2, L1], got %#v", detail.Links)
	}

	client.expect(http.MethodGet, "/public/alice", nil, false, http.StatusNotFound, nil)
	client.expect(http.MethodPatch, "/biolinks/"+created.ID, map[string]any{"published": true}, true, http.StatusOK, nil)

	for index := 0; index < 2; index++ {
		client.expect(http.MethodGet, "/public/alice", nil, false, http.StatusOK, nil)
	}
	client.expect(http.MethodPost, "/track-click", map[string]any{"biolink_id": created.ID, "link_id": first.ID}, false, http.StatusOK, nil)

	response, _ := client.call(http.MethodGet, "/q/alice", nil, false)
	if response.StatusCode != http.StatusFound || response.Header.Get("Location") != publicBaseURL+"/public/alice" {
		testContext.Fatalf("unexpected scan response %d %q", response.StatusCode, response.Header.Get("Location"))
	}

	var report analytics.Report
	client.expect(http.MethodGet, "/analytics/"+created.ID+"/advanced?days=7", nil, true, http.StatusOK, &report)
	if report.Totals.Views != 2 || report.Totals.Clicks != 1 || report.Totals.QrScans != 1 || report.Totals.ActiveDays != 1 {
		testContext.Fatalf("unexpected report totals %#v", report.Totals)
	}
	if len(report.TopLinks) != 1 || report.TopLinks[0].LinkID != first.ID {
		testContext.Fatalf("unexpected top links %#v", report.TopLinks)
	}

	client.expect(http.MethodDelete, "/biolinks/"+created.ID, nil, true, http.StatusNoContent, nil)
	client.expect(http.MethodGet, "/public/alice", nil, false, http.StatusNotFound, nil)
	client.expect(http.MethodGet, "/analytics/"+created.ID, nil, true, http.StatusNotFound, nil)
}

func TestEmailCaptureFlow(testContext *testing.T) {
	client := newFlowClient(testContext)

	var created idPayload
	client.expect(http.MethodPost, "/biolinks", map[string]any{"username": "capture"}, true, http.StatusCreated, &created)
	subscription := map[string]any{"biolink_id": created.ID, "email": "fan@example.com"}

	client.expect(http.MethodPost, "/email-subscribers", subscription, false, http.StatusBadRequest, nil)
	client.expect(http.MethodPatch, "/biolinks/"+created.ID, map[string]any{"enable_email_capture": true}, true, http.StatusOK, nil)
	client.expect(http.MethodPost, "/email-subscribers", subscription, false, http.StatusCreated, nil)
	client.expect(http.MethodPost, "/email-subscribers", subscription, false, http.StatusConflict, nil)

	var listing struct {
		Subscribers []struct {
			Email string `json:"email"`
		} `json:"subscribers"`
	}
	client.expect(http.MethodGet, "/biolinks/"+created.ID+"/subscribers", nil, true, http.StatusOK, &listing)
	if len(listing.Subscribers) != 1 || listing.Subscribers[0].Email != "fan@example.com" {
		testContext.Fatalf("unexpected subscribers %#v", listing.Subscribers)
	}
}
