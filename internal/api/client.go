package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/datathon-cli/internal/models"
)

// TokenSource supplies the bearer token for authenticated requests. An
// empty token means the request goes out unauthenticated.
type TokenSource interface {
	BearerToken() string
}

// Client wraps the scoring backend's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	auth    TokenSource
}

// New creates a Client for the given base URL. A zero timeout leaves
// failure latency to the transport; cancellation is still available via
// the request context.
func New(baseURL string, timeout time.Duration, auth TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		auth:    auth,
	}
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token and the user record.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	creds := models.Credentials{Email: email, Password: password}
	if err := c.postJSON(ctx, "/login", creds, &out); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &out, nil
}

// Leaderboard fetches the top entries, pre-sorted by the backend. A
// non-positive limit falls back to the default of 20.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var out models.LeaderboardResponse
	path := "/leaderboard?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	return out.Leaderboard, nil
}

// Scores fetches the authenticated user's score history and stats.
func (c *Client) Scores(ctx context.Context) (*models.ScoresResponse, error) {
	var out models.ScoresResponse
	if err := c.getJSON(ctx, "/scores", &out); err != nil {
		return nil, fmt.Errorf("failed to fetch scores: %w", err)
	}
	return &out, nil
}

// RemainingSubmissions fetches today's quota snapshot.
func (c *Client) RemainingSubmissions(ctx context.Context) (*models.RemainingSubmissions, error) {
	var out models.RemainingSubmissions
	if err := c.getJSON(ctx, "/remaining-submissions", &out); err != nil {
		return nil, fmt.Errorf("failed to fetch remaining submissions: %w", err)
	}
	return &out, nil
}

// SubmissionsRemaining calls the older quota endpoint, which reports the
// count alone.
func (c *Client) SubmissionsRemaining(ctx context.Context) (int, error) {
	var out models.SubmissionsRemaining
	if err := c.getJSON(ctx, "/submissions-remaining", &out); err != nil {
		return 0, fmt.Errorf("failed to fetch remaining submissions: %w", err)
	}
	return out.SubmissionsRemaining, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.auth != nil {
		if token := c.auth.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
