// Package web provides HTTP request and response types for the migration API.
package web

import (
	"encoding/json"

	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
)

// LoginRequest represents the request body for the scripted login handshake.
type LoginRequest struct {
	Side          string `json:"side"          validate:"required,oneof=source target"`
	Subdomain     string `json:"subdomain"     validate:"required,min=1"`
	Email         string `json:"email"         validate:"required,email"`
	Password      string `json:"password"      validate:"required"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`

	// REST API credentials are optional; they unlock help-center and ticket
	// endpoints for this side.
	RESTUsername string `json:"restUsername,omitempty"`
	RESTAPIKey   string `json:"restApiKey,omitempty"`
}

// LoginResponse reports the login outcome. Non-success statuses tell the UI
// which follow-up to render: a 2FA prompt, a captcha notice, or the manual
// token form.
type LoginResponse struct {
	Status        string `json:"status"`
	EmailDelivery bool   `json:"emailDelivery,omitempty"`
	Detail        string `json:"detail,omitempty"`

	Subdomain string `json:"subdomain,omitempty"`
	AccountID int64  `json:"accountId,omitempty"`
}

// ManualTokenRequest represents the request body for pasting a token lifted
// from browser devtools.
type ManualTokenRequest struct {
	Side      string `json:"side"      validate:"required,oneof=source target"`
	Subdomain string `json:"subdomain" validate:"required,min=1"`
	Token     string `json:"token"     validate:"required"`

	RESTUsername string `json:"restUsername,omitempty"`
	RESTAPIKey   string `json:"restApiKey,omitempty"`
}

// SideRequest selects one authenticated side of the session.
type SideRequest struct {
	Side string `json:"side" validate:"required,oneof=source target"`
}

// ExportRequest represents the request body for exporting flows.
type ExportRequest struct {
	Side    string   `json:"side,omitempty" validate:"omitempty,oneof=source target"`
	FlowIDs []string `json:"flowIds"        validate:"required,min=1"`
}

// ImportRequest represents the request body for importing a previously
// exported document. The document is kept raw so it can be schema-validated
// before decoding.
type ImportRequest struct {
	Side            string          `json:"side,omitempty" validate:"omitempty,oneof=source target"`
	Document        json.RawMessage `json:"document"       validate:"required"`
	ShopName        string          `json:"shopName,omitempty"`
	IntegrationType string          `json:"integrationType,omitempty"`
}

// MigrateRequest represents the request body for a direct source-to-target
// migration.
type MigrateRequest struct {
	FlowIDs         []string `json:"flowIds" validate:"required,min=1"`
	ShopName        string   `json:"shopName,omitempty"`
	IntegrationType string   `json:"integrationType,omitempty"`
}

// ImportResponse pairs the per-item ledger with its aggregate counts.
type ImportResponse struct {
	Results []models.ImportResult `json:"results"`
	Summary models.BatchSummary   `json:"summary"`
}

// GuidancePreviewRequest represents the request body for drafting guidance
// prose without publishing it.
type GuidancePreviewRequest struct {
	Side    string   `json:"side,omitempty" validate:"omitempty,oneof=source target"`
	FlowIDs []string `json:"flowIds"        validate:"required,min=1"`
}

// TestTicketsRequest represents the request body for replaying sampled
// tickets as fresh evaluation tickets on the chosen side.
type TestTicketsRequest struct {
	Side    string         `json:"side,omitempty" validate:"omitempty,oneof=source target"`
	Tickets []SourceTicket `json:"tickets"        validate:"required,min=1"`
}

// SourceTicket is a sampled ticket together with its message bodies. Messages
// stay untyped so the output of the messages endpoint can be fed straight
// back in.
type SourceTicket struct {
	ID       int64            `json:"id"`
	Subject  string           `json:"subject,omitempty"`
	Customer map[string]any   `json:"customer,omitempty"`
	Messages []map[string]any `json:"messages" validate:"required,min=1"`
}

// TestTicketResult is one line of the creation ledger. A result can carry
// both a ticket id and an error when the ticket was created but tagging it
// failed.
type TestTicketResult struct {
	SourceTicketID int64  `json:"sourceTicketId"`
	TicketID       int64  `json:"ticketId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// TestTicketsResponse reports the creation ledger and, when one exists, the
// AI agent integration the new tickets were tagged against.
type TestTicketsResponse struct {
	Created int                  `json:"created"`
	Results []TestTicketResult   `json:"results"`
	AIAgent *gorgias.Integration `json:"aiAgent,omitempty"`
}

// GuidancePushRequest represents the request body for publishing guidance
// articles. The items come back from a preview, possibly hand-edited.
type GuidancePushRequest struct {
	Side  string                   `json:"side,omitempty" validate:"omitempty,oneof=source target"`
	Items []models.GuidancePreview `json:"items"          validate:"required,min=1"`
}
