// Package mastodon is a minimal Mastodon REST client covering the calls the
// relay needs: account lookup, timeline listing, search and post reactions.
package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "mastodon2memos/1.0"
	requestsPerSec = 1
	requestBurst   = 2
)

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("mastodon: %s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
}

// Client talks to one Mastodon instance on behalf of one access token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a client. baseURL is the instance root, e.g. https://mastodon.social.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mastodon: instance URL is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("mastodon: access token is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst),
	}, nil
}

// VerifyCredentials returns the account that owns the access token.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, &acct); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &acct, nil
}

// AccountStatuses lists the most recent statuses of an account, newest first.
func (c *Client) AccountStatuses(ctx context.Context, accountID string, limit int) ([]Status, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/accounts/" + url.PathEscape(accountID) + "/statuses"

	var statuses []Status
	if err := c.do(ctx, http.MethodGet, path, q, &statuses); err != nil {
		return nil, fmt.Errorf("account statuses: %w", err)
	}
	return statuses, nil
}

// GetStatus fetches a single status by ID.
func (c *Client) GetStatus(ctx context.Context, id string) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/statuses/"+url.PathEscape(id), nil, &st); err != nil {
		return nil, fmt.Errorf("get status %s: %w", id, err)
	}
	return &st, nil
}

// SearchStatuses runs a resolving search, so remote post URLs are fetched by
// the instance and returned as local statuses.
func (c *Client) SearchStatuses(ctx context.Context, query string) ([]Status, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "statuses")
	q.Set("resolve", "true")

	var res searchResults
	if err := c.do(ctx, http.MethodGet, "/api/v2/search", q, &res); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return res.Statuses, nil
}

// Unreblog undoes a boost made by the authenticated account.
func (c *Client) Unreblog(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/api/v1/statuses/"+url.PathEscape(id)+"/unreblog", nil, nil); err != nil {
		return fmt.Errorf("unreblog %s: %w", id, err)
	}
	return nil
}

// DeleteStatus deletes a status owned by the authenticated account.
func (c *Client) DeleteStatus(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/statuses/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, Method: method, URL: c.baseURL + path}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
