package gorgias

import (
	"context"
	"net/http"
	"net/url"

	"github.com/borashehu-gorgias/flows-migrator/pkg/models"
)

// FlowsClient talks to the workflow configuration API with a long-lived
// bearer token. The API has no dedicated create call: PUT with a fresh id
// creates, PUT with an existing id overwrites.
type FlowsClient struct {
	BaseURL string

	token  string
	client *http.Client
}

func NewFlowsClient(token string) *FlowsClient {
	return &FlowsClient{
		BaseURL: DefaultFlowsBaseURL,
		token:   token,
		client:  newHTTPClient(),
	}
}

// ListConfigurations fetches every flow configuration visible to the token's
// account, drafts included.
func (c *FlowsClient) ListConfigurations(ctx context.Context) ([]models.FlowDocument, error) {
	query := url.Values{}
	query.Add("is_draft[]", "0")
	query.Add("is_draft[]", "1")

	var flows []models.FlowDocument

	err := doJSON(ctx, c.client, http.MethodGet, c.BaseURL+"/configurations?"+query.Encode(), nil, &flows, bearerAuth(c.token))
	if err != nil {
		return nil, err
	}

	return flows, nil
}

// GetConfiguration fetches one full flow configuration by id.
func (c *FlowsClient) GetConfiguration(ctx context.Context, id string) (models.FlowDocument, error) {
	var flow models.FlowDocument

	err := doJSON(ctx, c.client, http.MethodGet, c.BaseURL+"/configurations/"+url.PathEscape(id), nil, &flow, bearerAuth(c.token))
	if err != nil {
		return nil, err
	}

	return flow, nil
}

// PutConfiguration writes a flow configuration under the given id,
// creating it when the id does not exist yet.
func (c *FlowsClient) PutConfiguration(ctx context.Context, id string, payload models.FlowDocument) (models.FlowDocument, error) {
	var created models.FlowDocument

	err := doJSON(ctx, c.client, http.MethodPut, c.BaseURL+"/configurations/"+url.PathEscape(id), payload, &created, bearerAuth(c.token))
	if err != nil {
		return nil, err
	}

	return created, nil
}
