package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borashehu-gorgias/flows-migrator/pkg/auth"
	"github.com/borashehu-gorgias/flows-migrator/pkg/completion"
	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
	"github.com/borashehu-gorgias/flows-migrator/pkg/services"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
	"github.com/borashehu-gorgias/flows-migrator/pkg/web"
)

func adminToken(t *testing.T) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": float64(42),
		"roles":      []any{"admin"},
		"exp":        float64(time.Now().Add(time.Hour).Unix()),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

// flowsAPIStub serves the configuration endpoints the handlers reach through
// the migration service.
func flowsAPIStub(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/configurations" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "F1", "name": "Returns", "account_id": float64(42)},
			})
		case strings.HasPrefix(r.URL.Path, "/configurations/") && r.Method == http.MethodGet:
			id := strings.TrimPrefix(r.URL.Path, "/configurations/")
			_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "name": "Flow " + id, "steps": []any{}})
		case strings.HasPrefix(r.URL.Path, "/configurations/") && r.Method == http.MethodPut:
			var payload models.FlowDocument
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			_ = json.NewEncoder(w).Encode(payload)
		case r.URL.Path == "/api/tickets" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": 1, "subject": "Where is my order"}},
			})
		case r.URL.Path == "/api/tickets" && r.Method == http.MethodPost:
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 501, "subject": payload["subject"], "status": "open"})
		case r.URL.Path == "/api/integrations":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": 7, "name": "AI Agent", "type": "ai-agent"}},
			})
		case strings.HasSuffix(r.URL.Path, "/tags") && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/messages") && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"id": 1, "from_agent": false, "body_text": "Where is my order?"}},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewMemoryStore(time.Hour)
	server := flowsAPIStub(t)

	migrationService := services.NewMigration(logger)
	migrationService.NewFlowsClient = func(token string) *gorgias.FlowsClient {
		client := gorgias.NewFlowsClient(token)
		client.BaseURL = server.URL

		return client
	}

	guidanceService := services.NewGuidance(logger, completion.NewClient("", "", "", logger))
	guidanceService.NewFlowsClient = migrationService.NewFlowsClient

	handlers := web.NewAPIHandlers(
		services.NewAccounts(logger, auth.NewBroker(logger), store),
		migrationService,
		guidanceService,
		store,
		validator.New(validator.WithRequiredStructEnabled()),
	)
	handlers.NewHelpdeskClient = func(subdomain, username, apiKey string) *gorgias.HelpdeskClient {
		client := gorgias.NewHelpdeskClient(subdomain, username, apiKey)
		client.BaseURL = server.URL

		return client
	}

	app := fiber.New()
	web.RegisterRoutes(app, handlers)

	return app
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// authenticate pastes a manual token for the given side and returns the
// session cookie value.
func authenticate(t *testing.T, app *fiber.App, side string) string {
	t.Helper()

	req := jsonRequest(t, http.MethodPost, "/auth/manual-token", web.ManualTokenRequest{
		Side:         side,
		Subdomain:    "acme",
		Token:        adminToken(t),
		RESTUsername: "agent@acme.test",
		RESTAPIKey:   "key-1",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == web.SessionCookie {
			return cookie.Value
		}
	}

	t.Fatal("no session cookie set")

	return ""
}

func withSession(req *http.Request, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: web.SessionCookie, Value: sessionID})

	return req
}

func TestAPIHandlers_ManualToken(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/auth/manual-token", web.ManualTokenRequest{
		Side:      "source",
		Subdomain: "acme",
		Token:     adminToken(t),
	})

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body web.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	assert.EqualValues(t, 42, body.AccountID)
}

func TestAPIHandlers_ManualToken_Rejected(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/auth/manual-token", web.ManualTokenRequest{
		Side:      "source",
		Subdomain: "acme",
		Token:     "not-a-jwt",
	})

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetFlows(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(httptest.NewRequest(http.MethodGet, "/flows", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Flows []models.FlowDocument `json:"flows"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Returns", body.Flows[0]["name"])
}

func TestAPIHandlers_GetFlows_Unauthenticated(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/flows", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/flows/export", web.ExportRequest{
		FlowIDs: []string{"F1", "F2"},
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var doc models.ExportDocument
	require.NoError(t, json.Unmarshal(exported, &doc))
	assert.Equal(t, 2, doc.FlowCount)

	// Feed the export straight back as an import on the target side.
	targetSession := authenticate(t, app, "target")

	resp, err = app.Test(withSession(jsonRequest(t, http.MethodPost, "/flows/import", web.ImportRequest{
		Document: exported,
	}), targetSession))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var imported web.ImportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&imported))
	assert.Equal(t, models.BatchSummary{Total: 2, Succeeded: 2}, imported.Summary)

	for _, result := range imported.Results {
		assert.True(t, result.Success)
		assert.NotEmpty(t, result.NewID)
	}
}

func TestAPIHandlers_Import_RejectsBadDocument(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "target")

	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/flows/import", web.ImportRequest{
		Document: json.RawMessage(`{"version": "1.0"}`),
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_Migrate_NeedsBothSides(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/flows/migrate", web.MigrateRequest{
		FlowIDs: []string{"F1"},
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_GuidancePreview(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/guidances/preview", web.GuidancePreviewRequest{
		FlowIDs: []string{"F1"},
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Previews []models.GuidancePreview `json:"previews"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Previews, 1)
	assert.Equal(t, "F1", body.Previews[0].FlowID)
	assert.Contains(t, body.Previews[0].Content, "Flow F1")
}

func TestAPIHandlers_GetTickets(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(httptest.NewRequest(http.MethodGet, "/tickets?limit=5", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
}

func TestAPIHandlers_GetTicketMessages(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(httptest.NewRequest(http.MethodGet, "/tickets/12/messages", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []map[string]any `json:"messages"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Where is my order?", body.Messages[0]["body_text"])
}

func TestAPIHandlers_GetTicketMessages_BadID(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(httptest.NewRequest(http.MethodGet, "/tickets/twelve/messages", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateTestTickets(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "target")

	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/tickets/test", web.TestTicketsRequest{
		Tickets: []web.SourceTicket{
			{
				ID:      12,
				Subject: "Where is my order",
				Messages: []map[string]any{
					{"from_agent": true, "body_text": "Checking now"},
					{"from_agent": false, "body_text": "Where is my order?", "sender": map[string]any{"email": "shopper@acme.test"}},
				},
			},
			{
				ID:       13,
				Subject:  "Agent-only thread",
				Messages: []map[string]any{{"from_agent": true, "body_text": "internal note"}},
			},
		},
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body web.TestTicketsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 1, body.Created)
	require.Len(t, body.Results, 2)

	assert.EqualValues(t, 12, body.Results[0].SourceTicketID)
	assert.EqualValues(t, 501, body.Results[0].TicketID)
	assert.Empty(t, body.Results[0].Error)

	// A thread with no customer message cannot be replayed; it lands in the
	// ledger without sinking the batch.
	assert.EqualValues(t, 13, body.Results[1].SourceTicketID)
	assert.Zero(t, body.Results[1].TicketID)
	assert.Contains(t, body.Results[1].Error, "no customer message")

	require.NotNil(t, body.AIAgent)
	assert.EqualValues(t, 7, body.AIAgent.ID)
}

func TestAPIHandlers_Refresh_ManualTokenSide(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	// Manual-token sides carry no session cookie; refresh must demand reauth.
	resp, err := app.Test(withSession(jsonRequest(t, http.MethodPost, "/auth/refresh", web.SideRequest{
		Side: "source",
	}), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_Logout(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	sessionID := authenticate(t, app, "source")

	resp, err := app.Test(withSession(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The session is gone; authenticated endpoints reject the old cookie.
	resp, err = app.Test(withSession(httptest.NewRequest(http.MethodGet, "/flows", nil), sessionID))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
