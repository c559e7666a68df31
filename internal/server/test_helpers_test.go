package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biolinkhq/biolink/internal/analytics"
	"github.com/biolinkhq/biolink/internal/auth"
	"github.com/biolinkhq/biolink/internal/biolinks"
	"github.com/biolinkhq/biolink/internal/public"
	"github.com/biolinkhq/biolink/internal/qrcode"
	"github.com/biolinkhq/biolink/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "server-test-secret"
	testBaseURL       = "https://bio.example.com"
)

var databaseCounter atomic.Int64

type testServer struct {
	handler http.Handler
	db      *gorm.DB
	issuer  *auth.TokenIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", databaseCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	models := append(biolinks.Models(), &users.Account{})
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	clock := func() time.Time { return time.Unix(1700000600, 0).UTC() }
	idProvider := biolinks.NewUUIDProvider()
	logger := zap.NewNop()

	store, err := biolinks.NewService(biolinks.ServiceConfig{Database: db, Clock: clock, IDProvider: idProvider, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	recorder, err := analytics.NewRecorder(analytics.RecorderConfig{Database: db, Clock: clock, IDProvider: idProvider, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	aggregator, err := analytics.NewAggregator(analytics.AggregatorConfig{Database: db, Clock: clock, Logger: logger, Limits: analytics.DefaultLimits()})
	if err != nil {
		t.Fatalf("failed to create aggregator: %v", err)
	}
	resolver, err := public.NewResolver(public.Config{Database: db, Recorder: recorder, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	qrCodes, err := qrcode.NewGenerator(qrcode.Config{BaseURL: testBaseURL})
	if err != nil {
		t.Fatalf("failed to create qr generator: %v", err)
	}
	accounts, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock, IDProvider: idProvider, Logger: logger})
	if err != nil {
		t.Fatalf("failed to create account registry: %v", err)
	}
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to create session validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
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
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testServer{handler: handler, db: db, issuer: issuer}
}

func (s *testServer) token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	token, _, err := s.issuer.IssueSessionToken(context.Background(), auth.Identity{UserID: userID, IsAdmin: isAdmin})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Fatalf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}
