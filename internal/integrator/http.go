package integrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"finey/internal/core"
)

const (
	defaultPageSize   = 500
	defaultMaxRetries = 3
	// tokenLifetime is shorter than the aggregator's key lifetime so a key
	// is never used right before it expires.
	tokenLifetime = 25 * time.Minute
)

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PageSize     int
	MaxRetries   int
	// BaseDelay is the first retry delay (default 500ms).
	BaseDelay  time.Duration
	HTTPClient *http.Client
}

// HTTPClient authenticates with client credentials, follows pagination and
// retries transient failures with exponential backoff. Exhausted retries
// surface as core.UpstreamUnavailableError.
type HTTPClient struct {
	base   *url.URL
	cfg    HTTPConfig
	client *http.Client

	mu       sync.Mutex
	apiKey   string
	obtained time.Time
	now      func() time.Time
}

func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid aggregator URL %q", cfg.BaseURL)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("aggregator client id and secret are required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{base: base, cfg: cfg, client: client, now: time.Now}, nil
}

type authResponse struct {
	APIKey string `json:"apiKey"`
}

type transactionsPage struct {
	Total      int                 `json:"total"`
	TotalPages int                 `json:"totalPages"`
	Page       int                 `json:"page"`
	Results    []RemoteTransaction `json:"results"`
}

func (c *HTTPClient) FetchAccount(ctx context.Context, accountID string) (core.Account, error) {
	var remote RemoteAccount
	if err := c.getJSON(ctx, "/accounts/"+url.PathEscape(accountID), nil, &remote); err != nil {
		return core.Account{}, err
	}
	if remote.ID == "" {
		remote.ID = accountID
	}
	return remote.toCore(c.now())
}

func (c *HTTPClient) FetchTransactions(ctx context.Context, accountID string, r core.DateRange) ([]core.Transaction, error) {
	var all []RemoteTransaction
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("accountId", accountID)
		q.Set("from", r.Start.String())
		q.Set("to", r.End.String())
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))

		var p transactionsPage
		if err := c.getJSON(ctx, "/transactions", q, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if page >= p.TotalPages || len(p.Results) == 0 {
			break
		}
	}

	slog.DebugContext(ctx, "Fetched aggregator transactions",
		"account_id", accountID, "range", r.String(), "count", len(all))
	return convert(accountID, all)
}

// getJSON issues an authenticated GET. A 401 refreshes the key once;
// network errors, 429 and 5xx are retried.
func (c *HTTPClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := *c.base
	u.Path += path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	refreshed := false
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(c.cfg.BaseDelay, attempt)); err != nil {
				return &core.UpstreamUnavailableError{Service: "bank aggregator", Err: fmt.Errorf("%w: %w", err, lastErr)}
			}
		}

		key, err := c.token(ctx, false)
		if err != nil {
			if isTransient(err) {
				lastErr = err
				continue
			}
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-KEY", key)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !refreshed:
			refreshed = true
			if _, err := c.token(ctx, true); err != nil {
				return err
			}
			attempt--
			continue
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("GET %s: %w", path, ErrAccountNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &statusError{code: resp.StatusCode, body: string(body)}
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("GET %s: %w", path, &statusError{code: resp.StatusCode, body: string(body)})
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}

	slog.WarnContext(ctx, "Aggregator request failed after retries",
		"path", path, "attempts", c.cfg.MaxRetries, "error", lastErr)
	return &core.UpstreamUnavailableError{Service: "bank aggregator", Err: lastErr}
}

// token returns a cached API key, exchanging the client credentials when
// the key is missing, stale, or force is set.
func (c *HTTPClient) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && c.apiKey != "" && c.now().Sub(c.obtained) < tokenLifetime {
		return c.apiKey, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"clientId":     c.cfg.ClientID,
		"clientSecret": c.cfg.ClientSecret,
	})
	u := *c.base
	u.Path += "/auth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("aggregator auth: %w", &statusError{code: resp.StatusCode, body: string(body)})
	}
	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if ar.APIKey == "" {
		return "", errors.New("aggregator auth: empty api key")
	}
	c.apiKey = ar.APIKey
	c.obtained = c.now()
	return c.apiKey, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(e.body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("status %d: %s", e.code, body)
}

// isTransient reports network failures and retryable statuses.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// backoff doubles base per attempt, capped at 30s.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
