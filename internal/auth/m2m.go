package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// M2MTokenResponse is the identity provider's client-credentials response.
type M2MTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetM2MToken fetches a machine-to-machine token so the payment service can
// call the booking service. Cached in Redis when a cache is provided.
func GetM2MToken(ctx context.Context, client *http.Client, cache *RedisTokenCache) (string, error) {
	if cache != nil {
		cached, err := cache.GetToken(ctx)
		if err == nil && cached != nil {
			return cached.Token, nil
		}
	}

	issuer := os.Getenv("OIDC_ISSUER")
	clientID := os.Getenv("M2M_CLIENT_ID")
	clientSecret := os.Getenv("M2M_CLIENT_SECRET")
	if issuer == "" || clientID == "" {
		return "", fmt.Errorf("OIDC_ISSUER and M2M_CLIENT_ID must be set")
	}

	tokenURL := fmt.Sprintf("%s/protocol/openid-connect/token", issuer)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to get token, status %s: %s", resp.Status, string(bodyBytes))
	}

	var tokenResp M2MTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}

	if cache != nil && tokenResp.ExpiresIn > 0 {
		_ = cache.SetToken(ctx, tokenResp.AccessToken, tokenResp.ExpiresIn)
	}

	return tokenResp.AccessToken, nil
}
