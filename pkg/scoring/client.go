package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
)

const (
	planPath                  = "/v1/assignment-plans"
	errorBodyReadLimit  int64 = 1024
	defaultClientTimeout      = 3 * time.Second
)

var errBaseURLRequired = errors.New("scoring base url is required")

// Client wraps the external driver-scoring service that ranks which driver
// should take each delivery in a branch.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the scoring client for the configured base URL.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// DeliveryPoint is one delivery awaiting a driver recommendation.
type DeliveryPoint struct {
	DeliveryID string   `json:"delivery_id"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// DriverPoint is a candidate driver with their last known position.
type DriverPoint struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// PlanRequest is the batched payload sent to the scoring service: every
// pending delivery and candidate driver for one branch in a single call.
type PlanRequest struct {
	BranchID   string          `json:"branch_id"`
	Deliveries []DeliveryPoint `json:"deliveries"`
	Drivers    []DriverPoint   `json:"drivers"`
}

// Assignment is the recommended driver for one delivery. Confidence is a
// 0..1 score; EtaMinutes and DistanceKm describe the driver's approach.
// Deliveries the service cannot place are simply absent from the plan.
type Assignment struct {
	DeliveryID string   `json:"delivery_id"`
	DriverID   string   `json:"driver_id"`
	DriverName string   `json:"driver_name,omitempty"`
	EtaMinutes float64  `json:"eta_minutes"`
	DistanceKm float64  `json:"distance_km"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Plan is the scoring service response for one branch batch.
type Plan struct {
	Assignments []Assignment `json:"assignments"`
}

// ByDelivery indexes the plan's assignments by delivery ID.
func (p *Plan) ByDelivery() map[string]Assignment {
	if p == nil {
		return nil
	}
	out := make(map[string]Assignment, len(p.Assignments))
	for _, a := range p.Assignments {
		out[a.DeliveryID] = a
	}
	return out
}

// AssignmentPlan requests driver recommendations for a batch of deliveries.
func (c *Client) AssignmentPlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scoring client not configured")
	}
	if strings.TrimSpace(req.BranchID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch ID is required")
	}
	if len(req.Deliveries) == 0 {
		return &Plan{}, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal plan request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+planPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build plan request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute plan request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "plan request failed")
	}

	var plan Plan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode plan response")
	}

	return &plan, nil
}
