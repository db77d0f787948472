package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/borashehu-gorgias/flows-migrator/pkg/completion"
	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
)

// Guidance converts flows into AI agent guidance articles: preview the prose
// first, then push the (possibly hand-edited) result to the account's
// guidance help center.
type Guidance struct {
	logger     *slog.Logger
	completion *completion.Client

	NewFlowsClient      func(token string) *gorgias.FlowsClient
	NewAIAgentClient    func(token string) *gorgias.AIAgentClient
	NewHelpCenterClient func(subdomain, username, apiKey string) *gorgias.HelpCenterClient
}

func NewGuidance(logger *slog.Logger, completionClient *completion.Client) *Guidance {
	return &Guidance{
		logger:              logger.With("module", "guidance"),
		completion:          completionClient,
		NewFlowsClient:      gorgias.NewFlowsClient,
		NewAIAgentClient:    gorgias.NewAIAgentClient,
		NewHelpCenterClient: gorgias.NewHelpCenterClient,
	}
}

// Preview fetches the selected flows and drafts guidance prose for each,
// without touching the help center.
func (g *Guidance) Preview(ctx context.Context, account *session.Account, flowIDs []string) ([]models.GuidancePreview, error) {
	if account == nil {
		return nil, ErrNotAuthenticated
	}

	if len(flowIDs) == 0 {
		return nil, ErrNoFlowsSelected
	}

	client := g.NewFlowsClient(account.BearerToken)
	previews := make([]models.GuidancePreview, 0, len(flowIDs))

	for _, id := range flowIDs {
		flow, err := client.GetConfiguration(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch flow %s: %w", id, err)
		}

		previews = append(previews, models.GuidancePreview{
			FlowID:   models.FlowID(flow),
			FlowName: models.FlowName(flow),
			Content:  g.completion.GuidanceForFlow(ctx, flow),
		})
	}

	return previews, nil
}

// Push publishes guidance articles to the account's guidance help center.
// The help center id is resolved per account; items are pushed sequentially
// with a per-item ledger, matching the import path.
func (g *Guidance) Push(ctx context.Context, account *session.Account, previews []models.GuidancePreview) ([]models.GuidanceResult, error) {
	if account == nil {
		return nil, ErrNotAuthenticated
	}

	if len(previews) == 0 {
		return nil, ErrNoFlowsSelected
	}

	if account.RESTUsername == "" || account.RESTAPIKey == "" {
		return nil, ErrRESTCredentialsNeeded
	}

	helpCenterID, err := g.NewAIAgentClient(account.BearerToken).GuidanceHelpCenterID(ctx, account.Subdomain)
	if err != nil {
		if gorgias.IsNotFound(err) {
			return nil, ErrNoHelpCenter
		}

		return nil, fmt.Errorf("failed to resolve guidance help center: %w", err)
	}

	helpCenter := g.NewHelpCenterClient(account.Subdomain, account.RESTUsername, account.RESTAPIKey)
	results := make([]models.GuidanceResult, 0, len(previews))

	for _, preview := range previews {
		title := preview.FlowName
		if title == "" {
			title = "Migrated Flow " + preview.FlowID
		}

		result := models.GuidanceResult{
			FlowID: preview.FlowID,
			Title:  title,
		}

		articleID, err := helpCenter.CreateArticle(ctx, helpCenterID, gorgias.Article{
			Title:   title,
			Content: preview.Content,
		})
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)

			g.logger.Error("guidance push failed",
				"flow_id", preview.FlowID,
				"error", err)

			continue
		}

		result.Success = true
		result.ArticleID = articleID
		results = append(results, result)
	}

	return results, nil
}
