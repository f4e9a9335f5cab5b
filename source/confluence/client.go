package confluence

import (
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
	"time"

	"github.com/poiesic/runbooks/core"
	"github.com/poiesic/runbooks/source"
	"github.com/sony/gobreaker"
)

const (
	pageExpand   = "body.storage,version,space,ancestors"
	searchExpand = "space,version"

	defaultRetryAfter = 60 * time.Second
	maxSearchLimit    = 100
)

// Client is a Confluence REST API client.
// It is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	retry      backoff
	logger     *slog.Logger
}

var _ source.Fetcher = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithBreakerSettings replaces the circuit breaker settings.
// IsSuccessful defaults to counting only retryable errors as failures.
func WithBreakerSettings(settings gobreaker.Settings) Option {
	return func(c *Client) error {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = breakerSuccess
		}
		c.breaker = gobreaker.NewCircuitBreaker(settings)
		return nil
	}
}

// NewClient creates a client for the site described by config.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, ErrNotConfigured
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "confluence-client")

	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "confluence",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: breakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}

	c.retry = backoff{
		maxAttempts: config.MaxRetries + 1,
		baseDelay:   config.RetryDelay,
		maxDelay:    config.MaxRetryDelay,
		shouldRetry: IsRetryable,
		logger:      c.logger,
	}
	return c, nil
}

// breakerSuccess counts client errors such as 404 as successful calls so
// missing pages never open the circuit.
func breakerSuccess(err error) bool {
	return err == nil || !IsRetryable(err)
}

// BaseURL returns the normalized site URL.
func (c *Client) BaseURL() string {
	return c.config.URL
}

// PageURL returns the browser URL of a page.
func (c *Client) PageURL(spaceKey, pageID string) string {
	return fmt.Sprintf("%s/spaces/%s/pages/%s", c.config.URL, spaceKey, pageID)
}

// PageSummary is a search hit.
type PageSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SpaceKey     string `json:"space_key"`
	LastModified string `json:"last_modified,omitempty"`
	URL          string `json:"url"`
}

type pageResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		When string `json:"when"`
		By   struct {
			DisplayName string `json:"displayName"`
		} `json:"by"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

type searchResponse struct {
	Results []pageResponse `json:"results"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// FetchPage gets a page with its storage-format body.
func (c *Client) FetchPage(ctx context.Context, pageID string) (*core.RawPage, error) {
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return nil, ErrEmptyPageID
	}

	params := url.Values{"expand": {pageExpand}}
	var page pageResponse
	if err := c.getJSON(ctx, "/content/"+url.PathEscape(pageID), params, &page); err != nil {
		if IsNotFound(err) {
			return nil, &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Page with ID '%s' not found", pageID)}
		}
		return nil, err
	}

	return &core.RawPage{
		ID:           page.ID,
		Title:        page.Title,
		SpaceKey:     page.Space.Key,
		Author:       page.Version.By.DisplayName,
		LastModified: page.Version.When,
		Body:         page.Body.Storage.Value,
		URL:          c.PageURL(page.Space.Key, page.ID),
	}, nil
}

// SearchPages runs a CQL full-text search over pages, optionally limited to a space.
func (c *Client) SearchPages(ctx context.Context, query, spaceKey string, limit int) ([]PageSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > maxSearchLimit {
		return nil, ErrInvalidLimit
	}

	cql := []string{fmt.Sprintf("text ~ %s", cqlQuote(query)), "type = page"}
	if spaceKey = strings.TrimSpace(spaceKey); spaceKey != "" {
		cql = append(cql, fmt.Sprintf("space = %s", cqlQuote(spaceKey)))
	}
	params := url.Values{
		"cql":    {strings.Join(cql, " AND ")},
		"limit":  {strconv.Itoa(limit)},
		"expand": {searchExpand},
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/content/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]PageSummary, 0, len(resp.Results))
	for _, p := range resp.Results {
		results = append(results, PageSummary{
			ID:           p.ID,
			Title:        p.Title,
			SpaceKey:     p.Space.Key,
			LastModified: p.Version.When,
			URL:          c.PageURL(p.Space.Key, p.ID),
		})
	}
	return results, nil
}

func cqlQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// getJSON performs a GET against /rest/api with retries and the circuit breaker.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.retry.retry(ctx, func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.doGet(ctx, endpoint, params, out)
		})
		return err
	})
}

func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.config.URL + "/rest/api" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.config.Username, c.config.APIToken)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("making request to Confluence API", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.logger.Error("Confluence API request timeout", "endpoint", endpoint, "timeout", c.config.Timeout)
			return &APIError{Message: fmt.Sprintf("Request timeout: %v", err)}
		}
		c.logger.Error("Confluence API request failed", "endpoint", endpoint, "err", err)
		return &APIError{Message: fmt.Sprintf("Request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("Confluence API rate limit exceeded", "endpoint", endpoint, "retryAfter", retryAfter)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    "Confluence API rate limit exceeded",
			RetryAfter: retryAfter,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var detail errorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, &detail)
		apiErr := newStatusError(resp.StatusCode, detail.Message)
		c.logger.Warn("Confluence API error", "endpoint", endpoint, "status", resp.StatusCode, "err", apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding Confluence response: %w", err)
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
