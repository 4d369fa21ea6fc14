// Package upstream contains the clients for the position service feeding the
// engine: a REST client for the periodic full-state snapshot and a WebSocket
// client for the incremental push channel.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// SnapshotClient fetches full current-state documents over HTTP.
type SnapshotClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSnapshotClient creates a snapshot client for the given API root, e.g.
// "https://positions.example.com". apiKey may be empty when the upstream is
// unauthenticated.
func NewSnapshotClient(baseURL, apiKey string) *SnapshotClient {
	return &SnapshotClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchSnapshot retrieves the full position/risk state document.
func (c *SnapshotClient) FetchSnapshot(ctx context.Context) (domain.SnapshotDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/positions/snapshot", nil)
	if err != nil {
		return domain.SnapshotDocument{}, fmt.Errorf("upstream: build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SnapshotDocument{}, fmt.Errorf("upstream: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.SnapshotDocument{}, fmt.Errorf("upstream: snapshot status %d: %s", resp.StatusCode, body)
	}

	var doc domain.SnapshotDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return domain.SnapshotDocument{}, fmt.Errorf("upstream: decode snapshot: %w", err)
	}
	return doc, nil
}

// Compile-time interface check.
var _ domain.SnapshotSource = (*SnapshotClient)(nil)
