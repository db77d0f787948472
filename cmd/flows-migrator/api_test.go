package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borashehu-gorgias/flows-migrator/pkg/completion"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
)

func setupTestAPI() *API {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewAPI(
		logger,
		session.NewMemoryStore(time.Hour),
		completion.NewClient("", "", "", logger),
	)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestAPI().App()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Flows Migrator API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestAPI().App()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_HealthEndpoint(t *testing.T) {
	app := setupTestAPI().App()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
