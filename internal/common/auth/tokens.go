// internal/common/auth/tokens.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	commonhttp "notification-engine/internal/common/http"
)

// TokenClient resolves bearer tokens against an OpenID Connect provider's
// userinfo endpoint. The subject claim is the recipient identifier used
// throughout the engine.
type TokenClient struct {
	baseURL    string
	realm      string
	httpClient *commonhttp.Client
}

// userInfo is the subset of the userinfo response the engine needs.
type userInfo struct {
	Subject string `json:"sub"`
}

func NewTokenClient(baseURL, realm string) *TokenClient {
	return &TokenClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		realm:      realm,
		httpClient: commonhttp.NewClient(10 * time.Second),
	}
}

// Resolve validates the token and returns the subject it belongs to.
func (c *TokenClient) Resolve(ctx context.Context, token string) (string, error) {
	infoURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.baseURL, c.realm)

	req, err := http.NewRequestWithContext(ctx, "GET", infoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to execute userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if info.Subject == "" {
		return "", fmt.Errorf("userinfo response carries no subject")
	}
	return info.Subject, nil
}

// StaticResolver treats the token itself as the recipient identifier. It
// exists for local development with auth disabled; never use it in
// production.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
