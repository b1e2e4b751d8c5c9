// Package memos creates notes on a Memos instance through its v1 REST API.
package memos

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
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "mastodon2memos/1.0"
)

// Visibility controls who can see a memo.
type Visibility string

const (
	Private   Visibility = "PRIVATE"
	Protected Visibility = "PROTECTED"
	Public    Visibility = "PUBLIC"
)

// ParseVisibility accepts a visibility name in any case.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case Private, Protected, Public:
		return v, nil
	default:
		return "", fmt.Errorf("unknown visibility %q (want PRIVATE, PROTECTED or PUBLIC)", s)
	}
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("memos: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// IsRateLimited reports whether err is a 429 response from the instance.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests
}

// Memo is the subset of the created memo the relay keeps.
type Memo struct {
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	Visibility Visibility `json:"visibility"`
}

// User is the authenticated Memos user.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type createMemoRequest struct {
	Content    string     `json:"content"`
	Visibility Visibility `json:"visibility"`
}

// Client talks to one Memos instance with one access token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client. baseURL is the instance root, e.g. https://memos.example.com.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("memos: instance URL is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("memos: access token is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// CreateMemo posts a new memo. Any non-2xx status is returned as *HTTPError.
func (c *Client) CreateMemo(ctx context.Context, content string, visibility Visibility) (*Memo, error) {
	if visibility == "" {
		visibility = Private
	}
	body, err := json.Marshal(createMemoRequest{Content: content, Visibility: visibility})
	if err != nil {
		return nil, fmt.Errorf("encode memo: %w", err)
	}

	var memo Memo
	if err := c.do(ctx, http.MethodPost, "/api/v1/memos", body, &memo); err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}
	return &memo, nil
}

// CurrentUser returns the user owning the access token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Method: method, URL: c.baseURL + path}
	}

	// Older instances answer with an empty body; the memo name is optional.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
