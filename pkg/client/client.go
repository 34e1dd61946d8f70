// Package client provides a provider-agnostic HTTP client that routes every
// call through its own scheduler, with optional Redis response caching.
package client

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

	"github.com/Sternrassler/fetch-scheduler/pkg/cache"
	"github.com/Sternrassler/fetch-scheduler/pkg/ratelimit"
	"github.com/Sternrassler/fetch-scheduler/pkg/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_client_requests_total",
		Help: "Total provider requests by provider and status",
	}, []string{"provider", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fetch_client_request_duration_seconds",
		Help:    "End-to-end request duration including queueing and retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_client_errors_total",
		Help: "Total provider errors by class",
	}, []string{"provider", "class"})
)

// maxDrain bounds how much of a discarded body is read to reuse the connection.
const maxDrain = 64 << 10

// Classifier turns one HTTP exchange into a scheduler result.
type Classifier interface {
	Classify(resp *http.Response, err error) scheduler.Result
}

// Config holds the client configuration.
type Config struct {
	// Name labels logs, metrics and cache keys (e.g. "omdb").
	Name string

	// BaseURL is prepended to endpoints passed to Get/GetJSON/PostText.
	BaseURL string

	// UserAgent header (required).
	UserAgent string

	// Headers and Query are added to every outgoing request (credentials).
	Headers http.Header
	Query   url.Values

	// Scheduler bounds concurrency, pacing and retries for this provider.
	Scheduler scheduler.Config

	// Classifier maps responses to scheduler results (default: 429 rejected).
	Classifier Classifier

	// Cache enables response caching of GET requests when set.
	Cache    *cache.Manager
	CacheTTL time.Duration

	// Timeout per HTTP attempt.
	Timeout time.Duration
}

// DefaultConfig returns a configuration with the default scheduler settings.
func DefaultConfig(name, baseURL, userAgent string) Config {
	return Config{
		Name:       name,
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		Scheduler:  scheduler.DefaultConfig(name),
		Classifier: ratelimit.HTTPClassifier{},
		CacheTTL:   cache.DefaultTTL,
		Timeout:    30 * time.Second,
	}
}

// Client is a scheduled HTTP client for one provider.
type Client struct {
	httpClient *http.Client
	sched      *scheduler.Scheduler
	classifier Classifier
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a new client with its own scheduler.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Classifier == nil {
		cfg.Classifier = ratelimit.HTTPClassifier{}
	}
	if cfg.Scheduler.Name == "" {
		cfg.Scheduler.Name = cfg.Name
	}

	logger := log.With().Str("component", "api-client").Str("provider", cfg.Name).Logger()

	sched, err := scheduler.New(cfg.Scheduler, logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sched:      sched,
		classifier: cfg.Classifier,
		cache:      cfg.Cache,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Scheduler returns the scheduler all of this client's requests go through.
func (c *Client) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Do performs req through the scheduler. GET responses are served from and
// stored in the cache when one is configured. Non-2xx statuses the classifier
// accepts are returned as-is; exhausted retries return an *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.config.Name).Observe(time.Since(startTime).Seconds())
	}()

	// Keyed on the caller's query, before credentials are added.
	cacheable := c.cache != nil && req.Method == http.MethodGet
	cacheKey := cache.Key{
		Provider:    c.config.Name,
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving cached response")
			requestsTotal.WithLabelValues(c.config.Name, "cache_hit").Inc()
			return cache.EntryToResponse(entry), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	prepared := c.prepare(req)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Scheduling request")

	res, err := c.sched.Execute(ctx, func(ctx context.Context) scheduler.Result {
		return c.attempt(ctx, prepared, endpoint)
	})
	if err != nil {
		return nil, c.terminalError(endpoint, res, err)
	}

	resp, ok := res.Value.(*http.Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("%s: scheduler returned no response", c.config.Name)
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		c.store(ctx, cacheKey, resp)
	}
	return resp, nil
}

// attempt performs one HTTP exchange on a fresh copy of req.
func (c *Client) attempt(ctx context.Context, req *http.Request, endpoint string) scheduler.Result {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return scheduler.Failure(nil, fmt.Errorf("rebuild request body: %w", err))
		}
		out.Body = body
	}

	resp, err := c.httpClient.Do(out)
	res := c.classifier.Classify(resp, err)
	c.record(endpoint, resp, err)

	if res.Kind == scheduler.KindRejected || res.Kind == scheduler.KindTransport {
		if resp != nil && resp.Body != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
			resp.Body.Close()
		}
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("kind", res.Kind.String()).
			Dur("retry_after", res.RetryAfter).
			Msg("Retriable response")
	}
	return res
}

// prepare returns a copy of req carrying the configured identity and credentials.
func (c *Client) prepare(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", c.config.UserAgent)
	if out.Header.Get("Accept") == "" {
		out.Header.Set("Accept", "application/json")
	}
	for k, vs := range c.config.Headers {
		out.Header.Del(k)
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}
	if len(c.config.Query) > 0 {
		q := out.URL.Query()
		for k, vs := range c.config.Query {
			q[k] = append([]string(nil), vs...)
		}
		out.URL.RawQuery = q.Encode()
	}
	return out
}

func (c *Client) record(endpoint string, resp *http.Response, err error) {
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		requestsTotal.WithLabelValues(c.config.Name, "network_error").Inc()
		errorsTotal.WithLabelValues(c.config.Name, string(ErrorClassNetwork)).Inc()
		return
	}
	requestsTotal.WithLabelValues(c.config.Name, strconv.Itoa(resp.StatusCode)).Inc()
	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(c.config.Name, string(class)).Inc()
	}
}

func (c *Client) terminalError(endpoint string, res scheduler.Result, err error) *APIError {
	apiErr := &APIError{
		Provider:   c.config.Name,
		ErrorClass: classifyTerminal(res, err),
		Message:    "request failed",
		Err:        err,
	}
	if resp, ok := res.Value.(*http.Response); ok && resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.Message = resp.Status
	}

	event := c.logger.Warn()
	if apiErr.ErrorClass == ErrorClassCancelled {
		event = c.logger.Debug()
	}
	event.Err(err).
		Str("endpoint", endpoint).
		Str("error_class", string(apiErr.ErrorClass)).
		Msg("Request gave up")
	return apiErr
}

func (c *Client) store(ctx context.Context, key cache.Key, resp *http.Response) {
	entry, err := cache.ResponseToEntry(resp, c.config.CacheTTL)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		return
	}
	if entry.TTL() <= 0 {
		return
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().
		Str("endpoint", key.Endpoint).
		Dur("ttl", entry.TTL()).
		Msg("Cached response")
}

// NewRequest builds a request for endpoint, relative to the base URL.
func (c *Client) NewRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// Get performs a GET request to endpoint, relative to the base URL.
func (c *Client) Get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes a 2xx JSON body into v.
func (c *Client) GetJSON(ctx context.Context, endpoint string, v any) error {
	resp, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return c.decode(resp, v)
}

// PostText sends body as text/plain (IGDB's query language) and decodes a
// 2xx JSON response into v.
func (c *Client) PostText(ctx context.Context, endpoint, body string, v any) error {
	req, err := c.NewRequest(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	return c.decode(resp, v)
}

func (c *Client) decode(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		message := strings.TrimSpace(string(msg))
		if message == "" {
			message = resp.Status
		}
		return &APIError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    message,
		}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.config.Name, err)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	return strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
