package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/borashehu-gorgias/flows-migrator/pkg/gorgias"
	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
	"github.com/borashehu-gorgias/flows-migrator/pkg/session"
	"github.com/borashehu-gorgias/flows-migrator/pkg/transform"
)

// exportSchema guards import against documents that were hand-edited or
// produced by an incompatible release.
const exportSchema = `{
	"type": "object",
	"required": ["version", "flows"],
	"properties": {
		"version": {"type": "string"},
		"exportedAt": {"type": "string"},
		"sourceSubdomain": {"type": "string"},
		"flowCount": {"type": "integer", "minimum": 0},
		"flows": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name"]
			}
		}
	}
}`

const defaultExportConcurrency = 4

// Migration moves flow configurations between accounts: export to a portable
// document, import from one, or both in a single pass.
type Migration struct {
	logger      *slog.Logger
	transformer *transform.Transformer
	schema      *gojsonschema.Schema

	// Client constructors are fields so tests can point them at local servers.
	NewFlowsClient func(token string) *gorgias.FlowsClient
	NewChatClient  func(token string) *gorgias.ChatClient

	ExportConcurrency int
}

func NewMigration(logger *slog.Logger) *Migration {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(exportSchema))
	if err != nil {
		panic("export schema does not compile: " + err.Error())
	}

	return &Migration{
		logger:            logger.With("module", "migration"),
		transformer:       transform.NewTransformer(logger),
		schema:            schema,
		NewFlowsClient:    gorgias.NewFlowsClient,
		NewChatClient:     gorgias.NewChatClient,
		ExportConcurrency: defaultExportConcurrency,
	}
}

// ListFlows returns every flow configuration visible to the account.
func (m *Migration) ListFlows(ctx context.Context, account *session.Account) ([]models.FlowDocument, error) {
	if account == nil {
		return nil, ErrNotAuthenticated
	}

	flows, err := m.NewFlowsClient(account.BearerToken).ListConfigurations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// Export fetches the selected flows and assembles an export document. The
// fetches fan out with bounded concurrency, but the result is all-or-nothing:
// one failed fetch fails the export, because a partial document imported
// later would silently drop flows.
func (m *Migration) Export(ctx context.Context, account *session.Account, flowIDs []string) (*models.ExportDocument, error) {
	if account == nil {
		return nil, ErrNotAuthenticated
	}

	if len(flowIDs) == 0 {
		return nil, ErrNoFlowsSelected
	}

	client := m.NewFlowsClient(account.BearerToken)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	flows := make([]models.FlowDocument, len(flowIDs))
	semaphore := make(chan struct{}, m.ExportConcurrency)

	for i, id := range flowIDs {
		wg.Add(1)

		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			flow, err := client.GetConfiguration(ctx, id)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to fetch flow %s: %w", id, err)
				}

				return
			}

			flows[i] = flow
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	m.logger.Info("exported flows", "subdomain", account.Subdomain, "count", len(flows))

	return &models.ExportDocument{
		Version:         models.ExportVersion,
		ExportedAt:      time.Now().UTC(),
		SourceSubdomain: account.Subdomain,
		FlowCount:       len(flows),
		Flows:           flows,
	}, nil
}

// ParseExportDocument validates raw bytes against the export schema before
// decoding them.
func (m *Migration) ParseExportDocument(raw []byte) (*models.ExportDocument, error) {
	result, err := m.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExportDocument, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidExportDocument, strings.Join(details, "; "))
	}

	var doc models.ExportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExportDocument, err)
	}

	return &doc, nil
}

// ImportOptions carries the optional chat-widget registration target. When
// ShopName is empty no registration is attempted.
type ImportOptions struct {
	ShopName        string
	IntegrationType string
}

// Import writes every flow in the document into the target account. Items
// are processed sequentially and a failure never aborts the batch; each
// outcome lands in the returned ledger.
func (m *Migration) Import(ctx context.Context, account *session.Account, doc *models.ExportDocument, opts ImportOptions) ([]models.ImportResult, error) {
	if account == nil {
		return nil, ErrNotAuthenticated
	}

	if doc == nil || len(doc.Flows) == 0 {
		return nil, ErrNoFlowsSelected
	}

	client := m.NewFlowsClient(account.BearerToken)

	targetAccountID, err := m.resolveTargetAccountID(ctx, client, account)
	if err != nil {
		return nil, err
	}

	results := make([]models.ImportResult, 0, len(doc.Flows))

	for _, flow := range doc.Flows {
		result := models.ImportResult{
			OriginalID: models.FlowID(flow),
			Name:       models.FlowName(flow),
		}

		prepared := m.transformer.PrepareForImport(flow, targetAccountID)

		if _, err := client.PutConfiguration(ctx, prepared.NewFlowID, prepared.Payload); err != nil {
			result.Error = err.Error()
			results = append(results, result)

			m.logger.Error("flow import failed",
				"original_id", result.OriginalID,
				"error", err)

			continue
		}

		result.Success = true
		result.NewID = prepared.NewFlowID

		// Widget registration is best effort: the flow exists either way and
		// can be wired up manually.
		if opts.ShopName != "" {
			err := m.NewChatClient(account.BearerToken).RegisterFlow(ctx, opts.ShopName, opts.IntegrationType, prepared.NewFlowID)
			if err != nil {
				m.logger.Warn("flow imported but widget registration failed",
					"flow_id", prepared.NewFlowID,
					"shop_name", opts.ShopName,
					"error", err)
			} else {
				result.ShopRegistered = true
			}
		}

		results = append(results, result)
	}

	summary := models.Summarize(results)
	m.logger.Info("import finished",
		"subdomain", account.Subdomain,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)

	return results, nil
}

// Migrate exports the selected flows from the source account and imports
// them into the target account in one pass, skipping the file round trip.
func (m *Migration) Migrate(ctx context.Context, source, target *session.Account, flowIDs []string, opts ImportOptions) ([]models.ImportResult, error) {
	doc, err := m.Export(ctx, source, flowIDs)
	if err != nil {
		return nil, err
	}

	return m.Import(ctx, target, doc, opts)
}

// resolveTargetAccountID prefers the account id stamped on the target's own
// existing flows over the token claim: the flows API is the authority on
// which account a write lands in, and a mismatch means the token was minted
// for a different account than expected.
func (m *Migration) resolveTargetAccountID(ctx context.Context, client *gorgias.FlowsClient, account *session.Account) (int64, error) {
	existing, err := client.ListConfigurations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect target account: %w", err)
	}

	for _, flow := range existing {
		id, ok := flow["account_id"].(float64)
		if !ok {
			continue
		}

		observed := int64(id)
		if account.AccountID != 0 && observed != account.AccountID {
			m.logger.Warn("token account claim disagrees with existing flows, using the flows' account id",
				"claimed", account.AccountID,
				"observed", observed)
		}

		return observed, nil
	}

	return account.AccountID, nil
}
