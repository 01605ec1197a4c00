// Package advisor calls the external AI advisory service for a recommended
// action on an issue. The upstream is optional and flaky by nature, so every
// call goes through a circuit breaker and callers always keep a rule-based
// fallback suggestion.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dualtower/hydroai/internal/model"
	"github.com/dualtower/hydroai/internal/state"
)

type Client struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New builds an advisory client. An empty base URL yields a client whose
// Recommend always reports "not configured".
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "advisor",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Enabled reports whether an upstream is configured.
func (c *Client) Enabled() bool { return c != nil && c.base != "" }

type request struct {
	Tower     model.Tower        `json:"tower"`
	IssueType model.IssueType    `json:"issue_type"`
	Readings  map[string]float64 `json:"readings"`
}

type response struct {
	Action string `json:"action"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// Recommend asks the advisory service for an action on the given issue. The
// returned string is empty when the upstream is unconfigured, open-circuited
// or failing; the caller keeps its local suggestion in that case.
func (c *Client) Recommend(ctx context.Context, tower model.Tower, issueType model.IssueType, snap state.Snapshot) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	readings := make(map[string]float64, len(snap))
	for q, r := range snap {
		readings[string(q)] = r.Value
	}
	body, err := json.Marshal(request{Tower: tower, IssueType: issueType, Readings: readings})
	if err != nil {
		return "", err
	}

	res, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/recommend", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("advisor status %d", resp.StatusCode)
		}
		var out response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	out := res.(response)
	if out.Action == "" {
		return "", nil
	}
	if out.Amount != "" {
		return fmt.Sprintf("%s (%s) - %s", out.Action, out.Amount, out.Reason), nil
	}
	return fmt.Sprintf("%s - %s", out.Action, out.Reason), nil
}
