// Package social decouples external account links when an account is deleted.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Unlinker removes one external link for an account.
type Unlinker interface {
	Unlink(ctx context.Context, uuid, provider, externalID string) error
}

// HTTPUnlinker posts unlink requests to a companion service, typically the
// Discord bot that manages account links.
type HTTPUnlinker struct {
	url  string
	http *http.Client
}

func NewHTTPUnlinker(url string, timeout time.Duration) *HTTPUnlinker {
	return &HTTPUnlinker{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

func (u *HTTPUnlinker) Unlink(ctx context.Context, uuid, provider, externalID string) error {
	payload, err := json.Marshal(map[string]string{
		"uuid":        uuid,
		"provider":    provider,
		"external_id": externalID,
	})
	if err != nil {
		return fmt.Errorf("encode unlink request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build unlink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("unlink %s for %s: %w", provider, uuid, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unlink %s for %s: status %d", provider, uuid, resp.StatusCode)
	}
	return nil
}

// NoopUnlinker is used when no companion service is configured.
type NoopUnlinker struct{}

func (NoopUnlinker) Unlink(context.Context, string, string, string) error { return nil }
