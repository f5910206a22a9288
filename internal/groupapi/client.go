// Package groupapi is the HTTP client for the remote group service.
//
// Every response is an envelope with a boolean success flag; failures carry
// an error message. Errors are classified into domain codes so callers can
// tell a vanished group apart from a transient network problem.
package groupapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/danghamo/groupwatch/internal/domain/group"
	"github.com/danghamo/groupwatch/internal/domain/shared"
	"github.com/danghamo/groupwatch/pkg/logger"
)

// Client talks to the group service with an outbound rate limit
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// Config holds client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates a group service client
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     log.WithComponent("groupapi"),
	}
}

// CreateGroupRequest is the body of POST /groups
type CreateGroupRequest struct {
	Name            string `json:"name,omitempty"`
	RefreshInterval int    `json:"refreshInterval"`
	// ExpiryDuration is in hours; nil creates a group that never expires
	ExpiryDuration *int `json:"expiryDuration"`
}

type joinRequest struct {
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
}

// LocationUpdate is the body of POST /groups/{id}/locations
type LocationUpdate struct {
	MemberID       string  `json:"memberId"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	SharingEnabled bool    `json:"sharingEnabled"`
}

type envelope struct {
	Success   bool                   `json:"success"`
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Group     *group.Group           `json:"group"`
	Locations []group.MemberLocation `json:"locations"`
}

// CreateGroup creates a new group
func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*group.Group, error) {
	env, err := c.do(ctx, http.MethodPost, "/groups", req)
	if err != nil {
		return nil, err
	}
	if env.Group == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNetworkFailure, "create group: response has no group")
	}
	return env.Group, nil
}

// JoinGroup registers the member in a group
func (c *Client) JoinGroup(ctx context.Context, groupID string, identity group.Identity) (*group.Group, error) {
	env, err := c.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/join", joinRequest{
		MemberID:    identity.MemberID,
		DisplayName: identity.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	if env.Group == nil {
		return nil, shared.NewDomainError(shared.ErrCodeNetworkFailure, "join group: response has no group")
	}
	return env.Group, nil
}

// UpdateLocation reports the member's position
func (c *Client) UpdateLocation(ctx context.Context, groupID string, update LocationUpdate) error {
	_, err := c.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/locations", update)
	return err
}

// GetLocations fetches the group snapshot
func (c *Client) GetLocations(ctx context.Context, groupID string) ([]group.MemberLocation, error) {
	env, err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/locations", nil)
	if err != nil {
		return nil, err
	}
	return env.Locations, nil
}

// DeleteGroup deletes the group for every member
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(groupID), nil)
	return err
}

// do performs a rate-limited request and unwraps the envelope
func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeNetworkFailure, "rate limit wait")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, shared.WrapDomainError(err, shared.ErrCodeInvalidInput, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeInvalidInput, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeNetworkFailure, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapDomainError(err, shared.ErrCodeNetworkFailure, "read response body")
	}

	c.logger.Debug("Group service request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, classify(resp.StatusCode, truncate(raw, 200))
		}
		return nil, shared.WrapDomainError(err, shared.ErrCodeNetworkFailure, "decode response")
	}

	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "Request failed"
		}
		return nil, classify(resp.StatusCode, msg)
	}

	return &env, nil
}

// classify maps a failed response onto a domain error code
func classify(status int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusGone || strings.Contains(lower, "expired"):
		return shared.NewDomainError(shared.ErrCodeGroupExpired, msg)
	case status == http.StatusNotFound || strings.Contains(lower, "not found"):
		return shared.NewDomainError(shared.ErrCodeGroupNotFound, msg)
	default:
		return shared.NewDomainErrorf(shared.ErrCodeNetworkFailure, "group service returned %d: %s", status, msg)
	}
}

// truncate returns a truncated string representation for error messages
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
