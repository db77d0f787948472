package gorgias

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrIntegrationNotFound is returned when no integration of the requested
// type exists on the account.
var ErrIntegrationNotFound = errors.New("integration not found")

// HelpdeskClient talks to the core helpdesk REST API with Basic auth
// (agent email + API key): tickets, tags, and the integration registry.
type HelpdeskClient struct {
	BaseURL string

	username string
	apiKey   string
	client   *http.Client
}

func NewHelpdeskClient(subdomain, username, apiKey string) *HelpdeskClient {
	return &HelpdeskClient{
		BaseURL:  "https://" + subdomain + ".gorgias.com",
		username: username,
		apiKey:   apiKey,
		client:   newHTTPClient(),
	}
}

// Ticket is the subset of ticket fields the migrator's UI lists.
type Ticket struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
	Channel string `json:"channel"`
	Tags    []Tag  `json:"tags"`
	Via     string `json:"via,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Tag is a helpdesk ticket tag.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Integration is an entry in the account's integration registry.
type Integration struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// TicketContact identifies a message sender or the ticket's customer.
type TicketContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TicketMessage is one message in a ticket creation payload.
type TicketMessage struct {
	Channel   string        `json:"channel"`
	Via       string        `json:"via"`
	FromAgent bool          `json:"from_agent"`
	Sender    TicketContact `json:"sender"`
	BodyText  string        `json:"body_text,omitempty"`
	BodyHTML  string        `json:"body_html,omitempty"`
}

// NewTicket is the creation payload for CreateTicket. At least one message is
// required; the API rejects empty tickets.
type NewTicket struct {
	Subject  string          `json:"subject,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Via      string          `json:"via,omitempty"`
	Customer *TicketContact  `json:"customer,omitempty"`
	Messages []TicketMessage `json:"messages"`
}

// ListTickets fetches tickets ordered newest first, optionally filtered to
// those carrying the given tag.
func (c *HelpdeskClient) ListTickets(ctx context.Context, limit int, tag string) ([]Ticket, error) {
	if limit <= 0 {
		limit = 20
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("order_by", "created_datetime:desc")

	var response struct {
		Data []Ticket `json:"data"`
	}

	err := doJSON(ctx, c.client, http.MethodGet, c.BaseURL+"/api/tickets?"+query.Encode(), nil, &response, basicAuth(c.username, c.apiKey))
	if err != nil {
		return nil, err
	}

	if tag == "" {
		return response.Data, nil
	}

	filtered := make([]Ticket, 0, len(response.Data))

	for _, ticket := range response.Data {
		for _, t := range ticket.Tags {
			if strings.EqualFold(t.Name, tag) {
				filtered = append(filtered, ticket)

				break
			}
		}
	}

	return filtered, nil
}

// CreateTicket creates a ticket and returns the stored record.
func (c *HelpdeskClient) CreateTicket(ctx context.Context, ticket NewTicket) (*Ticket, error) {
	var created Ticket

	err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/api/tickets", ticket, &created, basicAuth(c.username, c.apiKey))
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// TicketMessages fetches the message bodies of one ticket.
func (c *HelpdeskClient) TicketMessages(ctx context.Context, ticketID int64) ([]map[string]any, error) {
	var response struct {
		Data []map[string]any `json:"data"`
	}

	endpoint := fmt.Sprintf("%s/api/tickets/%d/messages", c.BaseURL, ticketID)
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, nil, &response, basicAuth(c.username, c.apiKey)); err != nil {
		return nil, err
	}

	return response.Data, nil
}

// AddTicketTags appends tags to a ticket, preserving existing ones.
func (c *HelpdeskClient) AddTicketTags(ctx context.Context, ticketID int64, tags []string) error {
	names := make([]map[string]any, 0, len(tags))
	for _, tag := range tags {
		names = append(names, map[string]any{"name": tag})
	}

	endpoint := fmt.Sprintf("%s/api/tickets/%d/tags", c.BaseURL, ticketID)

	return doJSON(ctx, c.client, http.MethodPost, endpoint, map[string]any{"tags": names}, nil, basicAuth(c.username, c.apiKey))
}

// ListIntegrations fetches the account's integration registry.
func (c *HelpdeskClient) ListIntegrations(ctx context.Context) ([]Integration, error) {
	var response struct {
		Data []Integration `json:"data"`
	}

	err := doJSON(ctx, c.client, http.MethodGet, c.BaseURL+"/api/integrations", nil, &response, basicAuth(c.username, c.apiKey))
	if err != nil {
		return nil, err
	}

	return response.Data, nil
}

// FindIntegrationByType returns the first integration of the given type
// (e.g. "shopify"), used to locate the store integration guidances attach to.
func (c *HelpdeskClient) FindIntegrationByType(ctx context.Context, integrationType string) (*Integration, error) {
	integrations, err := c.ListIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	for _, integration := range integrations {
		if strings.EqualFold(integration.Type, integrationType) {
			return &integration, nil
		}
	}

	return nil, fmt.Errorf("%w: type %q", ErrIntegrationNotFound, integrationType)
}
