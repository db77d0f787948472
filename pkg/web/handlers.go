// Package web provides the HTTP handlers for the migration API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/borashehu-gorgias/flows-migrator/pkg/auth"
	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
	"github.com/borashehu-gorgias/flows-migrator/pkg/services"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
)

// SessionCookie names the browser cookie holding the opaque session id.
const SessionCookie = "migrator_session"

type APIHandlers struct {
	accountsService  *services.Accounts
	migrationService *services.Migration
	guidanceService  *services.Guidance
	store            session.Store
	validator        *validator.Validate

	// NewHelpdeskClient is a field so tests can point it at a local server.
	NewHelpdeskClient func(subdomain, username, apiKey string) *gorgias.HelpdeskClient
}

func NewAPIHandlers(
	accountsService *services.Accounts,
	migrationService *services.Migration,
	guidanceService *services.Guidance,
	store session.Store,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		accountsService:   accountsService,
		migrationService:  migrationService,
		guidanceService:   guidanceService,
		store:             store,
		validator:         validator,
		NewHelpdeskClient: gorgias.NewHelpdeskClient,
	}
}

// currentSession loads the session named by the request cookie, or starts a
// fresh one and sets the cookie.
func (h *APIHandlers) currentSession(c fiber.Ctx) (*session.Session, error) {
	if id := c.Cookies(SessionCookie); id != "" {
		sess, err := h.store.Get(c.Context(), id)
		if err == nil {
			return sess, nil
		}

		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}

	sess := session.New()
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return sess, nil
}

// authenticatedAccount resolves one side of the session, or fails with the
// error the 401 mapping expects.
func (h *APIHandlers) authenticatedAccount(c fiber.Ctx, side session.Side) (*session.Account, error) {
	sess, err := h.currentSession(c)
	if err != nil {
		return nil, err
	}

	account := sess.Account(side)
	if account == nil {
		return nil, services.ErrNotAuthenticated
	}

	return account, nil
}

func parseSide(raw string, fallback session.Side) session.Side {
	switch raw {
	case "source":
		return session.SideSource
	case "target":
		return session.SideTarget
	default:
		return fallback
	}
}

func (h *APIHandlers) Login(c fiber.Ctx) error {
	var req LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	sess, err := h.currentSession(c)
	if err != nil {
		return internalError(c, err)
	}

	result, err := h.accountsService.Login(c.Context(), sess, services.LoginRequest{
		Side: session.Side(req.Side),
		Credentials: auth.Credentials{
			Subdomain:     req.Subdomain,
			Email:         req.Email,
			Password:      req.Password,
			TwoFactorCode: req.TwoFactorCode,
		},
		RESTUsername: req.RESTUsername,
		RESTAPIKey:   req.RESTAPIKey,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	response := LoginResponse{
		Status:        string(result.Status),
		EmailDelivery: result.EmailDelivery,
		Detail:        result.Detail,
	}

	if result.Status == auth.LoginSuccess {
		account := sess.Account(session.Side(req.Side))
		response.Subdomain = account.Subdomain
		response.AccountID = account.AccountID
	}

	return c.JSON(response)
}

func (h *APIHandlers) ManualToken(c fiber.Ctx) error {
	var req ManualTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	sess, err := h.currentSession(c)
	if err != nil {
		return internalError(c, err)
	}

	err = h.accountsService.ManualToken(c.Context(), sess, session.Side(req.Side),
		req.Subdomain, req.Token, req.RESTUsername, req.RESTAPIKey)
	if err != nil {
		return handleServiceError(c, err)
	}

	account := sess.Account(session.Side(req.Side))

	return c.JSON(LoginResponse{
		Status:    string(auth.LoginSuccess),
		Subdomain: account.Subdomain,
		AccountID: account.AccountID,
	})
}

func (h *APIHandlers) Refresh(c fiber.Ctx) error {
	var req SideRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	sess, err := h.currentSession(c)
	if err != nil {
		return internalError(c, err)
	}

	if err := h.accountsService.Refresh(c.Context(), sess, session.Side(req.Side)); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Logout(c fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return internalError(c, err)
	}

	if err := h.accountsService.Logout(c.Context(), sess); err != nil {
		return internalError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:    SessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	side := parseSide(c.Query("side"), session.SideSource)

	account, err := h.authenticatedAccount(c, side)
	if err != nil {
		return handleServiceError(c, err)
	}

	flows, err := h.migrationService.ListFlows(c.Context(), account)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flows": flows, "count": len(flows)})
}

func (h *APIHandlers) ExportFlows(c fiber.Ctx) error {
	var req ExportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	account, err := h.authenticatedAccount(c, parseSide(req.Side, session.SideSource))
	if err != nil {
		return handleServiceError(c, err)
	}

	doc, err := h.migrationService.Export(c.Context(), account, req.FlowIDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(doc)
}

func (h *APIHandlers) ImportFlows(c fiber.Ctx) error {
	var req ImportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	account, err := h.authenticatedAccount(c, parseSide(req.Side, session.SideTarget))
	if err != nil {
		return handleServiceError(c, err)
	}

	doc, err := h.migrationService.ParseExportDocument(req.Document)
	if err != nil {
		return handleServiceError(c, err)
	}

	results, err := h.migrationService.Import(c.Context(), account, doc, services.ImportOptions{
		ShopName:        req.ShopName,
		IntegrationType: req.IntegrationType,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ImportResponse{Results: results, Summary: models.Summarize(results)})
}

func (h *APIHandlers) MigrateFlows(c fiber.Ctx) error {
	var req MigrateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	source, err := h.authenticatedAccount(c, session.SideSource)
	if err != nil {
		return handleServiceError(c, err)
	}

	target, err := h.authenticatedAccount(c, session.SideTarget)
	if err != nil {
		return handleServiceError(c, err)
	}

	results, err := h.migrationService.Migrate(c.Context(), source, target, req.FlowIDs, services.ImportOptions{
		ShopName:        req.ShopName,
		IntegrationType: req.IntegrationType,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ImportResponse{Results: results, Summary: models.Summarize(results)})
}

func (h *APIHandlers) PreviewGuidances(c fiber.Ctx) error {
	var req GuidancePreviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	account, err := h.authenticatedAccount(c, parseSide(req.Side, session.SideSource))
	if err != nil {
		return handleServiceError(c, err)
	}

	previews, err := h.guidanceService.Preview(c.Context(), account, req.FlowIDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"previews": previews})
}

func (h *APIHandlers) PushGuidances(c fiber.Ctx) error {
	var req GuidancePushRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	account, err := h.authenticatedAccount(c, parseSide(req.Side, session.SideTarget))
	if err != nil {
		return handleServiceError(c, err)
	}

	results, err := h.guidanceService.Push(c.Context(), account, req.Items)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"results": results})
}

// helpdeskClient resolves one side's account and builds a REST client for it.
// Sides authenticated without REST credentials cannot reach the ticket
// endpoints.
func (h *APIHandlers) helpdeskClient(c fiber.Ctx, side session.Side) (*gorgias.HelpdeskClient, error) {
	account, err := h.authenticatedAccount(c, side)
	if err != nil {
		return nil, err
	}

	if account.RESTUsername == "" || account.RESTAPIKey == "" {
		return nil, services.ErrRESTCredentialsNeeded
	}

	return h.NewHelpdeskClient(account.Subdomain, account.RESTUsername, account.RESTAPIKey), nil
}

func (h *APIHandlers) GetTickets(c fiber.Ctx) error {
	client, err := h.helpdeskClient(c, parseSide(c.Query("side"), session.SideSource))
	if err != nil {
		return handleServiceError(c, err)
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}
	}

	tickets, err := client.ListTickets(c.Context(), limit, c.Query("tag"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tickets": tickets, "count": len(tickets)})
}

func (h *APIHandlers) GetTicketMessages(c fiber.Ctx) error {
	client, err := h.helpdeskClient(c, parseSide(c.Query("side"), session.SideSource))
	if err != nil {
		return handleServiceError(c, err)
	}

	ticketID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid ticket id: "+c.Params("id"))
	}

	messages, err := client.TicketMessages(c.Context(), ticketID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages, "count": len(messages)})
}

// Evaluation tickets carry these tags so the listing endpoint can find them
// again with a tag filter.
const (
	testTicketTag          = "ai-agent-test"
	evaluationTag          = "ai-evaluation"
	aiAgentIntegrationType = "ai-agent"
)

var errNoCustomerMessage = errors.New("no customer message found")

// CreateTestTickets replays sampled source tickets as fresh email tickets,
// tagged for AI agent evaluation. When the account has an AI agent
// integration, an agent-specific tag is added too. Creation is a per-ticket
// ledger; one bad source ticket never sinks the batch.
func (h *APIHandlers) CreateTestTickets(c fiber.Ctx) error {
	var req TestTicketsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	client, err := h.helpdeskClient(c, parseSide(req.Side, session.SideTarget))
	if err != nil {
		return handleServiceError(c, err)
	}

	tags := []string{testTicketTag, evaluationTag}

	aiAgent, err := client.FindIntegrationByType(c.Context(), aiAgentIntegrationType)

	switch {
	case err == nil:
		tags = append(tags, fmt.Sprintf("ai-agent-%d", aiAgent.ID))
	case errors.Is(err, gorgias.ErrIntegrationNotFound):
		// Tickets are still usable for evaluation without the agent tag.
		aiAgent = nil
	default:
		return handleServiceError(c, err)
	}

	response := TestTicketsResponse{
		Results: make([]TestTicketResult, 0, len(req.Tickets)),
		AIAgent: aiAgent,
	}

	for _, source := range req.Tickets {
		result := TestTicketResult{SourceTicketID: source.ID}

		ticketID, err := createTestTicket(c.Context(), client, source, tags)
		if ticketID != 0 {
			result.TicketID = ticketID
			response.Created++
		}

		if err != nil {
			result.Error = err.Error()
		}

		response.Results = append(response.Results, result)
	}

	return c.JSON(response)
}

// createTestTicket creates one evaluation ticket from the first customer
// message of a sampled ticket and tags it. A non-zero id with a non-nil error
// means the ticket exists but tagging it failed.
func createTestTicket(ctx context.Context, client *gorgias.HelpdeskClient, source SourceTicket, tags []string) (int64, error) {
	message := firstCustomerMessage(source.Messages)
	if message == nil {
		return 0, errNoCustomerMessage
	}

	sender, _ := message["sender"].(map[string]any)
	contact := gorgias.TicketContact{
		Email: stringField(sender, "email", "test@example.com"),
		Name:  stringField(sender, "name", "Test Customer"),
	}

	bodyText, _ := message["body_text"].(string)
	bodyHTML, _ := message["body_html"].(string)

	if bodyText == "" {
		bodyText = bodyHTML
	}

	if bodyHTML == "" {
		bodyHTML = bodyText
	}

	subject := source.Subject
	if subject == "" {
		subject = "Test Ticket"
	}

	customer := contact
	if email := stringField(source.Customer, "email", ""); email != "" {
		customer = gorgias.TicketContact{
			Email: email,
			Name:  stringField(source.Customer, "name", ""),
		}
	}

	ticket, err := client.CreateTicket(ctx, gorgias.NewTicket{
		Subject:  "AI Test: " + subject,
		Channel:  "email",
		Via:      "api",
		Customer: &customer,
		Messages: []gorgias.TicketMessage{{
			Channel:   "email",
			Via:       "api",
			FromAgent: false,
			Sender:    contact,
			BodyText:  bodyText,
			BodyHTML:  bodyHTML,
		}},
	})
	if err != nil {
		return 0, err
	}

	if err := client.AddTicketTags(ctx, ticket.ID, tags); err != nil {
		return ticket.ID, fmt.Errorf("tagging ticket %d: %w", ticket.ID, err)
	}

	return ticket.ID, nil
}

func firstCustomerMessage(messages []map[string]any) map[string]any {
	for _, message := range messages {
		if fromAgent, _ := message["from_agent"].(bool); !fromAgent {
			return message
		}
	}

	return nil
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}

	return fallback
}

// HealthCheck probes the session store; a missing probe key is the healthy
// answer.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	_, err := h.store.Get(c.Context(), "health-probe")
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
