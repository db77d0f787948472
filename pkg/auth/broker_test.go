package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func newTestBroker(serverURL string) *Broker {
	broker := NewBroker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	broker.BaseURL = func(string) string { return serverURL }

	return broker
}

// identityProvider is a scripted stand-in for the helpdesk auth surface.
type identityProvider struct {
	t *testing.T

	bearerToken    string
	require2FA     bool
	valid2FACode   string
	loginErrorBody map[string]any
	omitCSRFCookie bool

	twoFactorPassed bool
	sawExchangeCSRF string
	sawExchangeJar  string
}

func (p *identityProvider) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /idp/login", func(w http.ResponseWriter, r *http.Request) {
		if !p.omitCSRFCookie {
			http.SetCookie(w, &http.Cookie{Name: "csrf", Value: "csrf-cookie-1"})
		}

		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /idp/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(p.t, "csrf-cookie-1", r.Header.Get("X-CSRF-Token"))

		if p.loginErrorBody != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(p.loginErrorBody)

			return
		}

		if p.require2FA && !p.twoFactorPassed {
			// Rotated on the error response as well; the 2FA call must
			// carry it.
			http.SetCookie(w, &http.Cookie{Name: "idp_state", Value: "rotated"})
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"require_2fa_code": true})

			return
		}

		http.SetCookie(w, &http.Cookie{Name: "session", Value: "sess-1"})
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /idp/2fa", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(p.t, r.Header.Get("Cookie"), "idp_state=rotated",
			"2fa call must reuse cookies captured from the failed login response")

		_ = r.ParseForm()
		if r.PostForm.Get("code") != p.valid2FACode {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"detail": "Invalid verification code"})

			return
		}

		p.twoFactorPassed = true

		http.SetCookie(w, &http.Cookie{Name: "session", Value: "sess-1"})
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "finalized", Value: "yes"})
		w.Header().Set("Location", "/dashboard")
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /app", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Cookie"), "session=sess-1") {
			// No session: bounce to the login page, which carries no CSRF
			// global.
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html><body>Please log in</body></html>"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html><script>window.CSRF_TOKEN = "page-csrf-9";</script></html>`))
	})

	mux.HandleFunc("POST /gorgias-apps/auth", func(w http.ResponseWriter, r *http.Request) {
		p.sawExchangeCSRF = r.Header.Get("X-CSRF-Token")
		p.sawExchangeJar = r.Header.Get("Cookie")

		if !strings.Contains(r.Header.Get("Cookie"), "session=sess-1") {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"token": p.bearerToken})
	})

	return mux
}

func TestBroker_Login_Success(t *testing.T) {
	t.Parallel()

	token := signedToken(t, jwt.MapClaims{"account_id": float64(4242), "roles": []any{"admin", "agent"}})
	provider := &identityProvider{t: t, bearerToken: token}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	broker := newTestBroker(server.URL)

	result, err := broker.Login(t.Context(), Credentials{
		Subdomain: "acme",
		Email:     "admin@acme.test",
		Password:  "hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, LoginSuccess, result.Status)
	assert.Equal(t, token, result.BearerToken)
	assert.Equal(t, "session=sess-1", result.SessionCookie)
	assert.Equal(t, "page-csrf-9", provider.sawExchangeCSRF, "exchange must use the page-scraped token")
	assert.Contains(t, provider.sawExchangeJar, "finalized=yes", "cookies from the redirect chain must be retained")
}

func TestBroker_Login_TwoFactorBranch(t *testing.T) {
	t.Parallel()

	token := signedToken(t, jwt.MapClaims{"account_id": float64(1), "roles": []any{"admin"}})
	provider := &identityProvider{t: t, bearerToken: token, require2FA: true, valid2FACode: "123456"}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	broker := newTestBroker(server.URL)
	creds := Credentials{Subdomain: "acme", Email: "a@b.test", Password: "pw"}

	// No code supplied: non-fatal, verification required.
	result, err := broker.Login(t.Context(), creds)
	require.NoError(t, err)
	assert.Equal(t, LoginTwoFactorRequired, result.Status)
	assert.Empty(t, result.BearerToken)

	// Wrong code: still in the two-factor state, with the provider's detail.
	creds.TwoFactorCode = "000000"
	result, err = broker.Login(t.Context(), creds)
	require.NoError(t, err)
	assert.Equal(t, LoginTwoFactorRequired, result.Status)
	assert.Equal(t, "Invalid verification code", result.Detail)

	// Valid code: folds back into the main path through to a bearer token.
	creds.TwoFactorCode = "123456"
	result, err = broker.Login(t.Context(), creds)
	require.NoError(t, err)
	assert.Equal(t, LoginSuccess, result.Status)
	assert.Equal(t, token, result.BearerToken)
}

func TestBroker_Login_TerminalBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     map[string]any
		expected LoginStatus
	}{
		{"sso only", map[string]any{"detail": "No password set for this user"}, LoginSsoOnly},
		{"captcha", map[string]any{"show_recaptcha": true}, LoginCaptchaRequired},
		{"unactivated", map[string]any{"user_unactivated": true}, LoginAccountUnactivated},
		{"bad credentials", map[string]any{"detail": "Invalid email or password"}, LoginInvalidCredentials},
		{"email 2fa", map[string]any{"require_2fa_email": true}, LoginTwoFactorRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider := &identityProvider{t: t, loginErrorBody: tt.body}
			server := httptest.NewServer(provider.handler())
			defer server.Close()

			result, err := newTestBroker(server.URL).Login(t.Context(), Credentials{
				Subdomain: "acme", Email: "a@b.test", Password: "pw",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Status)

			if tt.name == "email 2fa" {
				assert.True(t, result.EmailDelivery)
			}
		})
	}
}

func TestBroker_Login_MissingCSRFCookieIsFatal(t *testing.T) {
	t.Parallel()

	provider := &identityProvider{t: t, omitCSRFCookie: true}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	_, err := newTestBroker(server.URL).Login(t.Context(), Credentials{
		Subdomain: "acme", Email: "a@b.test", Password: "pw",
	})
	require.ErrorIs(t, err, ErrCSRFCookieMissing)
}

func TestBroker_Login_RejectsNonAdmin(t *testing.T) {
	t.Parallel()

	token := signedToken(t, jwt.MapClaims{"account_id": float64(1), "roles": []any{"agent"}})
	provider := &identityProvider{t: t, bearerToken: token}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	_, err := newTestBroker(server.URL).Login(t.Context(), Credentials{
		Subdomain: "acme", Email: "a@b.test", Password: "pw",
	})
	require.ErrorIs(t, err, ErrAdminRoleRequired)
}

func TestBroker_Refresh(t *testing.T) {
	t.Parallel()

	token := signedToken(t, jwt.MapClaims{"account_id": float64(7), "roles": []any{"admin"}})
	provider := &identityProvider{t: t, bearerToken: token}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	broker := newTestBroker(server.URL)

	refreshed, err := broker.Refresh(t.Context(), "acme", "session=sess-1")
	require.NoError(t, err)
	assert.Equal(t, token, refreshed)
}

func TestBroker_Refresh_DeadSessionRequiresReauth(t *testing.T) {
	t.Parallel()

	provider := &identityProvider{t: t}
	server := httptest.NewServer(provider.handler())
	defer server.Close()

	broker := newTestBroker(server.URL)

	_, err := broker.Refresh(t.Context(), "acme", "session=stale")
	require.ErrorIs(t, err, ErrReauthRequired)

	_, err = broker.Refresh(t.Context(), "acme", "")
	require.ErrorIs(t, err, ErrReauthRequired)
}
