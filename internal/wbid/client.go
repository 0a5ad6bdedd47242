// Package wbid talks to the legacy WBID account service during migration.
package wbid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const steamGrantType = "http://ns.fireteam.net/oauth2/grant-type/steam/encrypted_app_ticket"

// Client fetches account data from the legacy service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ExchangeToken trades stored Basic credentials and an encrypted Steam app
// ticket for a bearer token.
func (c *Client) ExchangeToken(ctx context.Context, credentials, ticket string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", steamGrantType)
	form.Set("ticket", ticket)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("exchange token: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("exchange token: empty access_token")
	}
	return body.AccessToken, nil
}

// FetchAccount resolves the legacy user id behind a bearer token.
func (c *Client) FetchAccount(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/me", nil)
	if err != nil {
		return "", fmt.Errorf("build account request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("fetch account: %w", err)
	}
	if body.UserID == "" {
		return "", fmt.Errorf("fetch account: empty user_id")
	}
	return body.UserID, nil
}

// FetchPrivateProfile returns the raw private profile save for a legacy user.
func (c *Client) FetchPrivateProfile(ctx context.Context, token, userID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+userID+"/profile/private", nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var profile map[string]any
	if err := c.do(req, &profile); err != nil {
		return nil, fmt.Errorf("fetch private profile: %w", err)
	}
	return profile, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
