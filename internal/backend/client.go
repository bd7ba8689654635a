package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/screenwise/screentime-service/internal/challenge"
	"github.com/screenwise/screentime-service/internal/monitor"
	"github.com/screenwise/screentime-service/internal/state"
)

// Client talks to the optional remote screen-time API. Every method returns
// an error on network failure, non-2xx status, or malformed payload; callers
// recover with local fallbacks and never surface these to the user.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a backend API client. baseURL must be non-empty; the
// composition root skips constructing a client entirely when no backend is
// configured.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// GenerateChallenge implements challenge.Oracle over POST /api/challenges/generate.
func (c *Client) GenerateChallenge(ctx context.Context, difficulty challenge.Difficulty, recent []challenge.Challenge) (challenge.Challenge, error) {
	body := struct {
		Difficulty      string                `json:"difficulty"`
		UserPerformance []challenge.Challenge `json:"user_performance"`
	}{
		Difficulty:      string(difficulty),
		UserPerformance: recent,
	}

	var generated challenge.Challenge
	if err := c.post(ctx, "/api/challenges/generate", body, &generated); err != nil {
		return challenge.Challenge{}, fmt.Errorf("%w: %s", challenge.ErrOracleUnavailable, err.Error())
	}
	return generated, nil
}

// SubmitResponse is the oracle's verdict for a submitted answer.
type SubmitResponse struct {
	Correct    bool `json:"correct"`
	TimeReward int  `json:"timeReward"`
}

// SubmitChallenge mirrors an answer submission to the backend, best effort.
func (c *Client) SubmitChallenge(ctx context.Context, challengeID string, answer int) (SubmitResponse, error) {
	body := struct {
		Answer int `json:"answer"`
	}{Answer: answer}

	var resp SubmitResponse
	path := "/api/challenges/" + url.PathEscape(challengeID) + "/submit"
	if err := c.post(ctx, path, body, &resp); err != nil {
		return SubmitResponse{}, err
	}
	return resp, nil
}

// AppInfo describes one detected app pushed to the backend registry.
type AppInfo struct {
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
}

// BulkRegisterApps uploads a device scan to the backend registry.
func (c *Client) BulkRegisterApps(ctx context.Context, apps []AppInfo) error {
	return c.post(ctx, "/api/apps/bulk-register", apps, nil)
}

// RegisterMonitoredApp mirrors a newly monitored app to the backend.
func (c *Client) RegisterMonitoredApp(ctx context.Context, app monitor.App) error {
	return c.post(ctx, "/api/apps/monitored", app, nil)
}

// UnregisterMonitoredApp mirrors a removal to the backend.
func (c *Client) UnregisterMonitoredApp(ctx context.Context, appID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/apps/monitored/"+url.PathEscape(appID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// LogSession uploads one usage session.
func (c *Client) LogSession(ctx context.Context, session state.UsageSession) error {
	return c.post(ctx, "/api/usage/session", session, nil)
}

// RealtimeUsage is one entry of GET /api/usage/realtime.
type RealtimeUsage struct {
	ID          string `json:"id"`
	PackageName string `json:"packageName"`
	AppName     string `json:"appName"`
	DailyLimit  int    `json:"dailyLimit"`
	TimeUsed    int    `json:"timeUsed"`
	IsBlocked   bool   `json:"isBlocked"`
	Percentage  int    `json:"percentage"`
}

// FetchRealtimeUsage returns today's usage for every app the backend tracks.
func (c *Client) FetchRealtimeUsage(ctx context.Context) ([]RealtimeUsage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/usage/realtime", nil)
	if err != nil {
		return nil, err
	}

	var usage []RealtimeUsage
	if err := c.do(req, &usage); err != nil {
		return nil, err
	}
	return usage, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("backend api status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
