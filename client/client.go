package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnreachable wraps transport-level failures so callers can tell a
// dead server apart from a server-returned error.
var ErrUnreachable = errors.New("server unreachable")

// APIError is a non-2xx response decoded from the server's
// {"error": message} body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *Client) Signup(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/signup", nil, body, nil, false)
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/auth/login", nil, body, nil, false)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, false)
}

// Me returns the authenticated user, or nil when no session is active.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var payload struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &payload, false); err != nil {
		return nil, err
	}
	return payload.User, nil
}

// ListApplications always bypasses HTTP caches: a list issued right
// after a mutation must see the server's current state, so the request
// is marked non-cacheable and carries a uniqueness token.
func (c *Client) ListApplications(ctx context.Context, query Query) ([]Application, error) {
	values := url.Values{}
	if query.Text != "" {
		values.Set("q", query.Text)
	}
	if query.Status != "" {
		values.Set("status", string(query.Status))
	}
	var apps []Application
	if err := c.do(ctx, http.MethodGet, "/apps", values, nil, &apps, true); err != nil {
		return nil, err
	}
	return apps, nil
}

func (c *Client) CreateApplication(ctx context.Context, fields Fields) (Application, error) {
	var app Application
	if err := c.do(ctx, http.MethodPost, "/apps", nil, fields, &app, false); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (c *Client) UpdateApplication(ctx context.Context, id string, patch Patch) (Application, error) {
	var app Application
	if err := c.do(ctx, http.MethodPut, "/apps/"+url.PathEscape(id), nil, patch, &app, false); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/apps/"+url.PathEscape(id), nil, nil, nil, false)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target interface{}, bustCache bool) error {
	if query == nil {
		query = url.Values{}
	}
	if bustCache {
		query.Set("_t", strconv.FormatInt(time.Now().UnixNano(), 10))
	}

	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bustCache {
		req.Header.Set("Cache-Control", "no-cache, no-store")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("request failed with status %d", resp.StatusCode),
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
