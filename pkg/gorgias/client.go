// Package gorgias holds the HTTP clients for the helpdesk platform's API
// surfaces: the workflow configuration API, the core helpdesk API, the chat
// shop registry, the help center, and the AI agent configuration service.
package gorgias

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default origins for each API surface. Clients expose their BaseURL so
// tests can point them at local servers.
const (
	DefaultFlowsBaseURL      = "https://api.gorgias.work"
	DefaultChatBaseURL       = "https://us-east1-898b.gorgias.chat"
	DefaultHelpCenterBaseURL = "https://internal-help-center-api.gorgias.com"
	DefaultAIAgentBaseURL    = "https://aiagent.gorgias.help"
)

// ErrUnauthorized is returned when an API rejects the supplied credential
// with a 401. Callers use it to decide whether a token refresh (or full
// re-authentication) is worth attempting.
var ErrUnauthorized = errors.New("credential rejected by API")

// APIError is a non-2xx response from any of the platform APIs. The raw
// response body is retained: target-side validation failures explain
// themselves there and nowhere else.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("API returned status %d for %s: %s", e.StatusCode, e.URL, e.Body)
	}

	return fmt.Sprintf("API returned status %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether an error is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doJSON issues a request with a JSON body (when payload is non-nil), applies
// the supplied header mutator, and decodes a JSON response into out (when out
// is non-nil). 401 maps to ErrUnauthorized; other non-2xx statuses map to
// *APIError with the body attached.
func doJSON(ctx context.Context, client *http.Client, method, url string, payload, out any, setAuth func(*http.Request)) error {
	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)

		return fmt.Errorf("%w: %s", ErrUnauthorized, url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))

		return &APIError{StatusCode: resp.StatusCode, URL: url, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}

	return nil
}

func bearerAuth(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func basicAuth(username, password string) func(*http.Request) {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}
