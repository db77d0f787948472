// Package auth implements the token broker: the multi-step login handshake
// against the helpdesk identity provider that yields the long-lived bearer
// token used by the workflow configuration API, plus the silent refresh
// sub-protocol built on the retained session cookie.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrCSRFCookieMissing means the login page handed out no csrf cookie;
	// nothing further can work.
	ErrCSRFCookieMissing = errors.New("no csrf cookie on login page response")

	// ErrCSRFTokenNotFound means the authenticated page did not embed the
	// expected CSRF global, which in practice means the session is not
	// actually authenticated.
	ErrCSRFTokenNotFound = errors.New("csrf token not found in authenticated page")

	// ErrNoTokenInResponse means the token exchange endpoint answered but
	// returned no token.
	ErrNoTokenInResponse = errors.New("token exchange response carried no token")

	// ErrReauthRequired means the retained session cookie is dead and the
	// caller must run the full login handshake again.
	ErrReauthRequired = errors.New("session expired, re-authentication required")
)

// csrfGlobalPattern matches the CSRF token the app page assigns to a
// JavaScript global.
var csrfGlobalPattern = regexp.MustCompile(`window\.CSRF_TOKEN\s*=\s*["']([^"']+)["']`)

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxRedirects = 10
)

// Broker runs the login handshake and the token refresh sub-protocol. It
// holds no credential state itself; sessions live with the caller.
type Broker struct {
	// Client is the HTTP client used for every call. It must not follow
	// redirects on its own: the broker chases them manually so Set-Cookie
	// headers are captured at every hop.
	Client *http.Client

	// BaseURL maps an account subdomain to the identity provider origin.
	// Overridable for tests.
	BaseURL func(subdomain string) string

	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		BaseURL: func(subdomain string) string {
			return "https://" + subdomain + ".gorgias.com"
		},
		logger: logger,
	}
}

// loginErrorBody is the structured body the identity provider attaches to a
// 400 on the credentials POST. Its flags select the next state rather than
// signalling a hard failure.
type loginErrorBody struct {
	Require2FACode  bool   `json:"require_2fa_code"`
	Require2FAEmail bool   `json:"require_2fa_email"`
	ShowRecaptcha   bool   `json:"show_recaptcha"`
	UserUnactivated bool   `json:"user_unactivated"`
	Detail          string `json:"detail"`
}

// Login runs the full handshake: csrf cookie, credentials POST, optional
// two-factor verification, session finalization, CSRF scrape, and token
// exchange. Non-success outcomes that are part of the protocol (2FA needed,
// captcha, SSO-only accounts) come back as a tagged LoginResult, not as an
// error; errors are reserved for network failures and broken invariants.
func (b *Broker) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	baseURL := b.BaseURL(creds.Subdomain)
	jar := NewCookieJar()

	csrfToken, err := b.acquireCSRFCookie(ctx, baseURL, jar)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("csrf cookie acquired, submitting credentials", "subdomain", creds.Subdomain)

	outcome, err := b.submitCredentials(ctx, baseURL, creds, csrfToken, jar)
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		return outcome, nil
	}

	// Credentials (and 2FA, when required) accepted. From here on the
	// page-scraped CSRF token is used, not the cookie one.
	if err := b.finalizeSession(ctx, baseURL, jar); err != nil {
		return nil, err
	}

	b.logger.Debug("session finalized, scraping app page for csrf token")

	pageCSRF, err := b.scrapeAppCSRF(ctx, baseURL, jar.Header(), jar)
	if err != nil {
		return nil, err
	}

	token, err := b.exchangeToken(ctx, baseURL, jar.Header(), pageCSRF)
	if err != nil {
		return nil, err
	}

	claims, err := DecodeToken(token)
	if err != nil {
		// The configuration API would enforce permissions anyway, but a
		// token we cannot decode is worth surfacing now.
		return nil, err
	}

	if !claims.HasRole("admin") {
		b.logger.Warn("login succeeded but account lacks admin role", "roles", claims.Roles)

		return nil, ErrAdminRoleRequired
	}

	b.logger.Info("bearer token acquired", "subdomain", creds.Subdomain, "account_id", claims.AccountID)

	return &LoginResult{
		Status:        LoginSuccess,
		BearerToken:   token,
		SessionCookie: jar.Pair("session"),
	}, nil
}

// Refresh re-acquires a bearer token using only the retained session cookie:
// re-fetch the authenticated page, re-scrape the CSRF global, re-exchange.
// When the session cookie itself is no longer valid the error wraps
// ErrReauthRequired and the caller must fall back to Login.
func (b *Broker) Refresh(ctx context.Context, subdomain, sessionCookie string) (string, error) {
	if sessionCookie == "" {
		return "", ErrReauthRequired
	}

	baseURL := b.BaseURL(subdomain)

	pageCSRF, err := b.scrapeAppCSRF(ctx, baseURL, sessionCookie, nil)
	if err != nil {
		if errors.Is(err, ErrCSRFTokenNotFound) {
			return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}

		return "", err
	}

	token, err := b.exchangeToken(ctx, baseURL, sessionCookie, pageCSRF)
	if err != nil {
		if errors.Is(err, ErrNoTokenInResponse) {
			return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}

		return "", err
	}

	b.logger.Info("bearer token refreshed", "subdomain", subdomain)

	return token, nil
}

// acquireCSRFCookie GETs the login page and pulls the csrf cookie out of its
// Set-Cookie headers.
func (b *Broker) acquireCSRFCookie(ctx context.Context, baseURL string, jar CookieJar) (string, error) {
	resp, err := b.do(ctx, http.MethodGet, baseURL+"/idp/login", nil, map[string]string{})
	if err != nil {
		return "", fmt.Errorf("fetching login page: %w", err)
	}
	defer resp.Body.Close()

	jar.Absorb(resp)

	csrfToken := jar.Get("csrf")
	if csrfToken == "" {
		return "", ErrCSRFCookieMissing
	}

	return csrfToken, nil
}

// submitCredentials POSTs the email/password form. A nil, nil return means
// the main path continues; a non-nil LoginResult is a protocol-level
// non-success outcome.
func (b *Broker) submitCredentials(ctx context.Context, baseURL string, creds Credentials, csrfToken string, jar CookieJar) (*LoginResult, error) {
	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)

	resp, err := b.do(ctx, http.MethodPost, baseURL+"/idp/login", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"X-CSRF-Token": csrfToken,
		"Cookie":       jar.Header(),
		"Origin":       baseURL,
		"Referer":      baseURL + "/idp/login",
	})
	if err != nil {
		return nil, fmt.Errorf("submitting credentials: %w", err)
	}
	defer resp.Body.Close()

	// The server rotates cookies even on a 400; capture them before
	// branching, the 2FA endpoint needs them.
	jar.Absorb(resp)

	if resp.StatusCode < 300 {
		return nil, nil
	}

	if resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("credentials POST returned unexpected status %d", resp.StatusCode)
	}

	var body loginErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding login error body: %w", err)
	}

	switch {
	case body.Require2FACode:
		if creds.TwoFactorCode == "" {
			return &LoginResult{Status: LoginTwoFactorRequired}, nil
		}

		return b.submitTwoFactorCode(ctx, baseURL, creds.TwoFactorCode, csrfToken, jar)

	case body.Require2FAEmail:
		// Email-delivered codes cannot be completed programmatically.
		return &LoginResult{Status: LoginTwoFactorRequired, EmailDelivery: true}, nil

	case body.ShowRecaptcha:
		return &LoginResult{Status: LoginCaptchaRequired}, nil

	case body.UserUnactivated:
		return &LoginResult{Status: LoginAccountUnactivated}, nil

	case strings.Contains(body.Detail, "No password"):
		return &LoginResult{Status: LoginSsoOnly, Detail: body.Detail}, nil

	default:
		return &LoginResult{Status: LoginInvalidCredentials, Detail: body.Detail}, nil
	}
}

// submitTwoFactorCode POSTs the 6-digit code with the accumulated cookie jar.
// Success folds back into the main path (nil result); a rejected code stays
// in the two-factor-required state.
func (b *Broker) submitTwoFactorCode(ctx context.Context, baseURL, code, csrfToken string, jar CookieJar) (*LoginResult, error) {
	form := url.Values{}
	form.Set("code", code)

	resp, err := b.do(ctx, http.MethodPost, baseURL+"/idp/2fa", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"X-CSRF-Token": csrfToken,
		"Cookie":       jar.Header(),
		"Origin":       baseURL,
		"Referer":      baseURL + "/idp/login",
	})
	if err != nil {
		return nil, fmt.Errorf("submitting two-factor code: %w", err)
	}
	defer resp.Body.Close()

	jar.Absorb(resp)

	if resp.StatusCode < 300 {
		b.logger.Debug("two-factor verification accepted")

		return nil, nil
	}

	var body loginErrorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)

	detail := body.Detail
	if detail == "" {
		detail = "Invalid verification code"
	}

	return &LoginResult{Status: LoginTwoFactorRequired, Detail: detail}, nil
}

// finalizeSession visits the session-finalization URL and follows its
// redirect chain manually, accumulating Set-Cookie headers at every hop.
func (b *Broker) finalizeSession(ctx context.Context, baseURL string, jar CookieJar) error {
	currentURL := baseURL + "/login"

	for range maxRedirects {
		resp, err := b.do(ctx, http.MethodGet, currentURL, nil, map[string]string{
			"Cookie": jar.Header(),
		})
		if err != nil {
			return fmt.Errorf("finalizing session: %w", err)
		}

		jar.Absorb(resp)
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			return nil
		}

		currentURL = absoluteURL(baseURL, location)
	}

	return nil
}

// scrapeAppCSRF fetches the authenticated app page (chasing redirects, with
// cookie accumulation when a jar is supplied) and extracts the CSRF token
// embedded as a JavaScript global.
func (b *Broker) scrapeAppCSRF(ctx context.Context, baseURL, cookieHeader string, jar CookieJar) (string, error) {
	currentURL := baseURL + "/app"

	for range maxRedirects {
		header := cookieHeader
		if jar != nil {
			header = jar.Header()
		}

		resp, err := b.do(ctx, http.MethodGet, currentURL, nil, map[string]string{
			"Cookie": header,
		})
		if err != nil {
			return "", fmt.Errorf("fetching app page: %w", err)
		}

		if jar != nil {
			jar.Absorb(resp)
		}

		if location := resp.Header.Get("Location"); isRedirect(resp.StatusCode) && location != "" {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()

			currentURL = absoluteURL(baseURL, location)

			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if err != nil {
			return "", fmt.Errorf("reading app page: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("%w: app page returned status %d", ErrCSRFTokenNotFound, resp.StatusCode)
		}

		match := csrfGlobalPattern.FindSubmatch(body)
		if match == nil {
			return "", ErrCSRFTokenNotFound
		}

		return string(match[1]), nil
	}

	return "", fmt.Errorf("app page redirect chain exceeded %d hops", maxRedirects)
}

// exchangeToken POSTs to the token-exchange endpoint with the session cookie
// and the page-scraped CSRF token; the response's token field is the
// long-lived bearer credential.
func (b *Broker) exchangeToken(ctx context.Context, baseURL, cookieHeader, pageCSRF string) (string, error) {
	resp, err := b.do(ctx, http.MethodPost, baseURL+"/gorgias-apps/auth", nil, map[string]string{
		"Cookie":                cookieHeader,
		"X-CSRF-Token":          pageCSRF,
		"X-Gorgias-User-Client": "web",
		"Origin":                baseURL,
		"Referer":               baseURL + "/app",
	})
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: exchange endpoint returned status %d", ErrNoTokenInResponse, resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token exchange response: %w", err)
	}

	if body.Token == "" {
		return "", ErrNoTokenInResponse
	}

	return body.Token, nil
}

func (b *Broker) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return b.Client.Do(req)
}

func isRedirect(status int) bool {
	return status == http.StatusMovedPermanently || status == http.StatusFound
}

func absoluteURL(baseURL, location string) string {
	if strings.HasPrefix(location, "http") {
		return location
	}

	return baseURL + location
}
