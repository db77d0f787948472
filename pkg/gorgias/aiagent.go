package gorgias

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ErrNoStoreConfiguration is returned when an account has no AI agent store
// configuration to resolve a help center id from.
var ErrNoStoreConfiguration = errors.New("no store configurations found for account")

// AIAgentClient resolves per-account AI agent settings. The guidance help
// center id differs per account and must be looked up, never hardcoded.
type AIAgentClient struct {
	BaseURL string

	token  string
	client *http.Client
}

func NewAIAgentClient(token string) *AIAgentClient {
	return &AIAgentClient{
		BaseURL: DefaultAIAgentBaseURL,
		token:   token,
		client:  newHTTPClient(),
	}
}

// GuidanceHelpCenterID returns the help center that receives guidance
// articles for the given account.
func (c *AIAgentClient) GuidanceHelpCenterID(ctx context.Context, subdomain string) (int64, error) {
	var response struct {
		StoreConfigurations []struct {
			GuidanceHelpCenterID int64  `json:"guidanceHelpCenterId"`
			StoreName            string `json:"storeName"`
		} `json:"storeConfigurations"`
	}

	endpoint := fmt.Sprintf("%s/api/config/accounts/%s/stores/configurations", c.BaseURL, url.PathEscape(subdomain))
	if err := doJSON(ctx, c.client, http.MethodGet, endpoint, nil, &response, bearerAuth(c.token)); err != nil {
		return 0, err
	}

	if len(response.StoreConfigurations) == 0 {
		return 0, ErrNoStoreConfiguration
	}

	id := response.StoreConfigurations[0].GuidanceHelpCenterID
	if id == 0 {
		return 0, fmt.Errorf("store configuration for %s carries no guidance help center id", subdomain)
	}

	return id, nil
}
