package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/google/uuid"
)

// Envelope is the body exchanged with a compute endpoint.
type Envelope struct {
	Success   bool                      `json:"success"`
	Data      *aggregation.CachedResult `json:"data,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorType string                    `json:"error_type,omitempty"`
}

const maxRemoteBody = 32 << 20

// Remote asks another deployment's compute endpoint for a fresh result.
type Remote struct {
	url    string
	client *http.Client
}

var _ Strategy = (*Remote)(nil)

// NewRemote returns a Remote for url. An empty url yields a strategy that
// always reports ErrUnavailable.
func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{url: url, client: &http.Client{Timeout: timeout}}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Compute(ctx context.Context) (aggregation.CachedResult, error) {
	if r.url == "" {
		return aggregation.CachedResult{}, ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return aggregation.CachedResult{}, fmt.Errorf("build compute request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return aggregation.CachedResult{}, fmt.Errorf("call compute endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return aggregation.CachedResult{}, fmt.Errorf("read compute response: %w", err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return aggregation.CachedResult{}, fmt.Errorf("compute endpoint returned %s: %s", resp.Status, env.Error)
		}
		return aggregation.CachedResult{}, fmt.Errorf("compute endpoint returned %s", resp.Status)
	}
	if decodeErr != nil {
		return aggregation.CachedResult{}, fmt.Errorf("decode compute response: %w", decodeErr)
	}
	if !env.Success || env.Data == nil {
		return aggregation.CachedResult{}, fmt.Errorf("compute endpoint reported failure: %s", env.Error)
	}

	result := *env.Data
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.ComputedAt.IsZero() {
		result.ComputedAt = time.Now().UTC()
	}
	return result, nil
}
