package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://financialmodelingprep.com/api/v3"
	defaultTimeout = 30 * time.Second
	rateLimit      = 4 // requests per second, conservative for the free tier
	maxAttempts    = 3
)

// ErrEmptyPayload is returned when the API answers 200 with no rows for the
// requested ticker. FMP does this for unknown symbols instead of a 404.
var ErrEmptyPayload = errors.New("fmp: empty payload")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fmp: unexpected status %d: %s", e.Code, e.Body)
}

// APIError is an error message FMP delivers inside a 200 response body,
// e.g. for an invalid or exhausted API key.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "fmp: api error: " + e.Message
}

// Client is a rate-limited client for the FinancialModelingPrep v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rateLimiter
}

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	return &rateLimiter{
		interval: time.Second / time.Duration(requestsPerSecond),
	}
}

func (r *rateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastCall)
	if elapsed < r.interval {
		time.Sleep(r.interval - elapsed)
	}
	r.lastCall = time.Now()
}

// NewClient creates a new FMP client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: newRateLimiter(rateLimit),
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

// get fetches one endpoint and returns the raw body after checking for the
// API's in-band error signals. path must start with "/"; params may be nil.
func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint path: %w", err)
	}

	q := u.Query()
	q.Set("apikey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	// Rate limit
	c.limiter.Wait()

	var body []byte
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * time.Second
			log.Printf("Retry attempt %d for %s after %v", attempt, path, backoff)
			time.Sleep(backoff)
		}

		body, lastErr = c.doRequest(ctx, u.String())
		if lastErr == nil {
			return body, nil
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Payload-level errors won't get better on retry.
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) {
			return nil, lastErr
		}

		// Client errors other than 429 are not retryable either.
		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) &&
			statusErr.Code >= 400 && statusErr.Code < 500 &&
			statusErr.Code != http.StatusTooManyRequests {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("all retries failed: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: httpResp.StatusCode, Body: string(body)}
	}

	// FMP reports key/plan problems as a 200 with an error object.
	if msg := gjson.GetBytes(body, "Error Message"); msg.Exists() {
		return nil, &APIError{Message: msg.String()}
	}

	return body, nil
}

// decodeRows decodes a JSON array body into rows, rejecting empty payloads.
func decodeRows[T any](body []byte) ([]T, error) {
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyPayload
	}
	return rows, nil
}

// GetProfile fetches the company profile (name, sector, price, market cap).
func (c *Client) GetProfile(ctx context.Context, ticker string) (*ProfileRow, error) {
	body, err := c.get(ctx, "/profile/"+url.PathEscape(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	rows, err := decodeRows[ProfileRow](body)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &rows[0], nil
}

// GetMarketCap fetches the latest market capitalization.
func (c *Client) GetMarketCap(ctx context.Context, ticker string) (*MarketCapRow, error) {
	body, err := c.get(ctx, "/market-capitalization/"+url.PathEscape(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching market cap: %w", err)
	}
	rows, err := decodeRows[MarketCapRow](body)
	if err != nil {
		return nil, fmt.Errorf("fetching market cap: %w", err)
	}
	return &rows[0], nil
}

// GetBalanceSheets fetches annual balance sheets, newest first.
func (c *Client) GetBalanceSheets(ctx context.Context, ticker string, limit int) ([]BalanceSheetRow, error) {
	params := map[string]string{"period": "annual"}
	if limit > 0 {
		params["limit"] = fmt.Sprint(limit)
	}
	body, err := c.get(ctx, "/balance-sheet-statement/"+url.PathEscape(ticker), params)
	if err != nil {
		return nil, fmt.Errorf("fetching balance sheets: %w", err)
	}
	rows, err := decodeRows[BalanceSheetRow](body)
	if err != nil {
		return nil, fmt.Errorf("fetching balance sheets: %w", err)
	}
	return rows, nil
}

// GetIncomeStatements fetches income statements, newest first.
// period is "annual" or "quarter".
func (c *Client) GetIncomeStatements(ctx context.Context, ticker, period string, limit int) ([]IncomeStatementRow, error) {
	params := map[string]string{"period": period}
	if limit > 0 {
		params["limit"] = fmt.Sprint(limit)
	}
	body, err := c.get(ctx, "/income-statement/"+url.PathEscape(ticker), params)
	if err != nil {
		return nil, fmt.Errorf("fetching income statements: %w", err)
	}
	rows, err := decodeRows[IncomeStatementRow](body)
	if err != nil {
		return nil, fmt.Errorf("fetching income statements: %w", err)
	}
	return rows, nil
}

// GetDividends fetches the dividend payment history, newest first.
// An empty history is not an error: plenty of companies pay no dividend.
func (c *Client) GetDividends(ctx context.Context, ticker string) ([]DividendRow, error) {
	body, err := c.get(ctx, "/historical-price-full/stock_dividend/"+url.PathEscape(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching dividends: %w", err)
	}
	var hist DividendHistory
	if err := json.Unmarshal(body, &hist); err != nil {
		return nil, fmt.Errorf("fetching dividends: parsing response: %w", err)
	}
	return hist.Historical, nil
}

// GetKeyMetrics fetches trailing-twelve-month key metrics.
func (c *Client) GetKeyMetrics(ctx context.Context, ticker string) (*KeyMetricsRow, error) {
	body, err := c.get(ctx, "/key-metrics-ttm/"+url.PathEscape(ticker), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching key metrics: %w", err)
	}
	rows, err := decodeRows[KeyMetricsRow](body)
	if err != nil {
		return nil, fmt.Errorf("fetching key metrics: %w", err)
	}
	return &rows[0], nil
}
