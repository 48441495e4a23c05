// Package webhook implements the CacheInvalidator as a fire-and-forget
// HTTP POST to a downstream purge endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blockwire/news-curator/internal/datasources"
)

var _ datasources.CacheInvalidator = (*Invalidator)(nil)

const requestTimeout = 5 * time.Second

type invalidatePayload struct {
	Reason        string    `json:"reason"`
	AffectedCount int       `json:"affected_count"`
	At            time.Time `json:"at"`
}

type Invalidator struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string) *Invalidator {
	return &Invalidator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

func (i *Invalidator) Invalidate(ctx context.Context, reason string, affected int) error {
	body, err := json.Marshal(invalidatePayload{
		Reason:        reason,
		AffectedCount: affected,
		At:            time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding invalidation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building invalidation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending invalidation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("invalidation endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
