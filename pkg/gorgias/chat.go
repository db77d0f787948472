package gorgias

import (
	"context"
	"net/http"
	"net/url"
)

// ChatClient manages the storefront widget's entrypoint registry. A freshly
// imported flow is invisible to shoppers until its id is registered here.
type ChatClient struct {
	BaseURL string

	token  string
	client *http.Client
}

func NewChatClient(token string) *ChatClient {
	return &ChatClient{
		BaseURL: DefaultChatBaseURL,
		token:   token,
		client:  newHTTPClient(),
	}
}

func (c *ChatClient) configURL(shopName, integrationType string) string {
	query := url.Values{}
	query.Set("shop_name", shopName)
	query.Set("type", integrationType)

	return c.BaseURL + "/ssp/helpdesk/configurations?" + query.Encode()
}

// GetShopConfiguration fetches a store's helpdesk widget configuration,
// including its workflowsEntrypoints registry.
func (c *ChatClient) GetShopConfiguration(ctx context.Context, shopName, integrationType string) (map[string]any, error) {
	var config map[string]any

	err := doJSON(ctx, c.client, http.MethodGet, c.configURL(shopName, integrationType), nil, &config, bearerAuth(c.token))
	if err != nil {
		return nil, err
	}

	return config, nil
}

// RegisterFlow appends a flow id to the store's workflowsEntrypoints registry
// so the storefront widget surfaces it. Registering an already-registered
// flow is a no-op.
func (c *ChatClient) RegisterFlow(ctx context.Context, shopName, integrationType, flowID string) error {
	config, err := c.GetShopConfiguration(ctx, shopName, integrationType)
	if err != nil {
		return err
	}

	entrypoints, _ := config["workflowsEntrypoints"].([]any)
	for _, raw := range entrypoints {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if entry["workflow_id"] == flowID {
			return nil
		}
	}

	config["workflowsEntrypoints"] = append(entrypoints, map[string]any{"workflow_id": flowID})

	return doJSON(ctx, c.client, http.MethodPut, c.configURL(shopName, integrationType), config, nil, bearerAuth(c.token))
}
