package gorgias

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// HelpCenterClient publishes guidance articles. The help center API takes a
// short-lived bearer token obtained by exchanging the helpdesk Basic-auth
// credentials; the client caches that token with its expiry instead of
// re-exchanging on every call. The cache lives on the client object, never
// in a package global.
type HelpCenterClient struct {
	// BaseURL is the help center API origin; AuthBaseURL is the helpdesk
	// origin hosting the token exchange endpoint.
	BaseURL     string
	AuthBaseURL string

	username string
	apiKey   string
	client   *http.Client

	shortToken  string
	tokenExpiry time.Time
}

func NewHelpCenterClient(subdomain, username, apiKey string) *HelpCenterClient {
	return &HelpCenterClient{
		BaseURL:     DefaultHelpCenterBaseURL,
		AuthBaseURL: "https://" + subdomain + ".gorgias.com",
		username:    username,
		apiKey:      apiKey,
		client:      newHTTPClient(),
	}
}

// Article is the payload for creating a help center article together with
// its initial translation.
type Article struct {
	Title   string
	Content string
	Locale  string
}

// token returns a valid short-lived bearer token, exchanging the Basic-auth
// credentials when the cached one is absent or expired.
func (c *HelpCenterClient) token(ctx context.Context) (string, error) {
	if c.shortToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.shortToken, nil
	}

	var exchanged struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}

	err := doJSON(ctx, c.client, http.MethodPost, c.AuthBaseURL+"/api/help-center/auth",
		map[string]any{}, &exchanged, basicAuth(c.username, c.apiKey))
	if err != nil {
		return "", fmt.Errorf("exchanging credentials for help center token: %w", err)
	}

	if exchanged.AccessToken == "" {
		return "", fmt.Errorf("help center auth returned no access_token")
	}

	expiresIn := exchanged.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}

	c.shortToken = exchanged.AccessToken
	// Renew a minute early so in-flight calls never straddle the expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return c.shortToken, nil
}

// CreateArticle publishes an article with one translation and returns the
// created article id.
func (c *HelpCenterClient) CreateArticle(ctx context.Context, helpCenterID int64, article Article) (int64, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	locale := article.Locale
	if locale == "" {
		locale = "en-US"
	}

	payload := map[string]any{
		"category_id": nil,
		"translation": map[string]any{
			"locale":  locale,
			"title":   article.Title,
			"content": htmlizeContent(article.Content),
			"excerpt": excerpt(article.Content),
			"slug":    Slugify(article.Title),
			"seo_meta": map[string]any{
				"title":       nil,
				"description": nil,
			},
			"visibility_status": "UNLISTED",
		},
	}

	var created struct {
		ID int64 `json:"id"`
	}

	url := fmt.Sprintf("%s/api/help-center/help-centers/%d/articles", c.BaseURL, helpCenterID)
	if err := doJSON(ctx, c.client, http.MethodPost, url, payload, &created, bearerAuth(token)); err != nil {
		return 0, err
	}

	return created.ID, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from an article title.
func Slugify(title string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(title), "-")

	return strings.Trim(slug, "-")
}

// htmlizeContent wraps plain-text guidance in the div-per-line markup the
// help center editor produces.
func htmlizeContent(content string) string {
	return "<div>" + strings.ReplaceAll(content, "\n", "</div><div>") + "</div>"
}

func excerpt(content string) string {
	if len(content) <= 200 {
		return content
	}

	return content[:200]
}
