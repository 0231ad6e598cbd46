package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Streetliferoleplay/web43/internal/auth"
	"github.com/Streetliferoleplay/web43/internal/fivem"
	"github.com/Streetliferoleplay/web43/internal/whitelist"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	testAdminUser  = "admin"
	testAdminPass  = "admin123"
	testWebhookKey = "fivem-secret-key"
)

// routerFixture hosts the full router over an in-memory database with a
// movable clock shared by every service.
type routerFixture struct {
	handler  http.Handler
	sessions *auth.SessionManager
	db       *gorm.DB
	now      time.Time
}

func newTestRouter(t *testing.T, webhookKey string) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&whitelist.Submission{}, &fivem.Snapshot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	fixture := &routerFixture{db: db, now: time.Unix(1700000000, 0).UTC()}
	clock := func() time.Time { return fixture.now }

	submissions, err := whitelist.NewService(whitelist.ServiceConfig{
		Database: db,
		Clock:    clock,
		Secrets:  whitelist.NewRandomSecretProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct whitelist service: %v", err)
	}

	sessions, err := auth.NewSessionManager(auth.SessionManagerConfig{
		Credentials: auth.Credentials{User: testAdminUser, Pass: testAdminPass},
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}
	fixture.sessions = sessions

	relay, err := fivem.NewService(fivem.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct fivem service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Submissions: submissions,
		Sessions:    sessions,
		FiveM:       relay,
		WebhookKey:  webhookKey,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	fixture.handler = handler

	return fixture
}

func (f *routerFixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func (f *routerFixture) login(t *testing.T) string {
	t.Helper()

	body := fmt.Sprintf(`{"user":%q,"pass":%q}`, testAdminUser, testAdminPass)
	recorder := f.do(t, http.MethodPost, "/api/admin/login", body, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", recorder.Code, recorder.Body.String())
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatalf("expected token in login response: %s", recorder.Body.String())
	}
	return payload.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	payload := map[string]any{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}
