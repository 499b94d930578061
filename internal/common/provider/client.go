// internal/common/provider/client.go
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"capacity-engine/internal/common/cache"
	"capacity-engine/internal/common/clock"
	apperrors "capacity-engine/internal/common/errors"
	commonhttp "capacity-engine/internal/common/http"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/common/metrics"
	"capacity-engine/internal/common/validation"
	"capacity-engine/internal/models"
)

const (
	EndpointEmployees      = "/employees"
	EndpointBookingWindows = "/booking_windows"
	EndpointJobs           = "/jobs"

	maxErrorBody = 4 << 10
	maxBody      = 8 << 20
)

type ClientOptions struct {
	Config        *Config
	HTTPClient    *commonhttp.Client
	Cache         cache.Cache
	Clock         clock.Clock
	Logger        logger.Logger
	OnStateChange func(Transition)
}

// Client is the resilient upstream scheduling provider client. Responses
// are cached with a jittered TTL; misses go through the circuit breaker
// and the retry loop.
type Client struct {
	config  *Config
	http    *commonhttp.Client
	cache   cache.Cache
	clock   clock.Clock
	logger  logger.Logger
	breaker *Breaker
	tracer  trace.Tracer

	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts ClientOptions) *Client {
	cfg := opts.Config
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = commonhttp.NewClient(cfg.Timeout)
	}
	if cfg.Token != "" {
		httpClient = httpClient.WithBearerToken(cfg.Token)
	}

	c := &Client{
		config: cfg,
		http:   httpClient,
		cache:  opts.Cache,
		clock:  clk,
		logger: log.WithFields(map[string]interface{}{"component": "provider"}),
		tracer: otel.Tracer("capacity-engine/provider"),
		rand:   rand.Float64,
		sleep:  sleepContext,
	}

	hook := opts.OnStateChange
	c.breaker = NewBreaker(cfg.FailureThreshold, cfg.Cooldown, clk, func(tr Transition) {
		c.logger.Warn("circuit breaker transition", map[string]interface{}{
			"from":     tr.From.String(),
			"to":       tr.To.String(),
			"failures": tr.Failures,
		})
		metrics.CircuitBreakerState.Set(float64(tr.To))
		metrics.CircuitBreakerTransitions.WithLabelValues(tr.From.String(), tr.To.String()).Inc()
		if hook != nil {
			hook(tr)
		}
	})
	metrics.CircuitBreakerState.Set(float64(BreakerClosed))

	return c
}

func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// GetEmployees returns every employee, following pagination.
func (c *Client) GetEmployees(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	for page := 1; page <= c.config.MaxPages; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("page_size", strconv.Itoa(c.config.PageSize))

		body, err := c.get(ctx, EndpointEmployees, params, employeesSchema)
		if err != nil {
			return nil, err
		}

		var resp employeesPage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, apperrors.NewResponseInvalidError(EndpointEmployees, err)
		}
		for _, e := range resp.Employees {
			out = append(out, e.toModel())
		}
		if resp.TotalPages <= page || len(resp.Employees) == 0 {
			break
		}
	}
	return out, nil
}

// GetBookingWindows returns the provider's advertised windows for date (YYYY-MM-DD).
func (c *Client) GetBookingWindows(ctx context.Context, date string) ([]models.BookingWindow, error) {
	params := url.Values{}
	params.Set("date", date)

	body, err := c.get(ctx, EndpointBookingWindows, params, bookingWindowsSchema)
	if err != nil {
		return nil, err
	}

	var resp bookingWindowsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewResponseInvalidError(EndpointBookingWindows, err)
	}

	out := make([]models.BookingWindow, 0, len(resp.BookingWindows))
	for _, w := range resp.BookingWindows {
		bw := w.toModel()
		if bw.Date == "" {
			bw.Date = date
		}
		out = append(out, bw)
	}
	return out, nil
}

// GetJobs returns jobs scheduled to start in [From, To] with any of the
// given statuses, following pagination.
func (c *Client) GetJobs(ctx context.Context, filter JobFilter) ([]models.Job, error) {
	var out []models.Job
	for page := 1; page <= c.config.MaxPages; page++ {
		params := url.Values{}
		params.Set("scheduled_start_min", filter.From.UTC().Format(time.RFC3339))
		params.Set("scheduled_start_max", filter.To.UTC().Format(time.RFC3339))
		for _, s := range filter.Statuses {
			params.Add("work_status", string(s))
		}
		params.Set("page", strconv.Itoa(page))
		params.Set("page_size", strconv.Itoa(c.config.PageSize))

		body, err := c.get(ctx, EndpointJobs, params, jobsSchema)
		if err != nil {
			return nil, err
		}

		var resp jobsPage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, apperrors.NewResponseInvalidError(EndpointJobs, err)
		}
		for _, j := range resp.Jobs {
			out = append(out, j.toModel())
		}
		if resp.TotalPages <= page || len(resp.Jobs) == 0 {
			break
		}
	}
	return out, nil
}

func cacheKey(endpoint string, params url.Values) string {
	return "provider:" + endpoint + "?" + params.Encode()
}

// get serves from cache, else runs one breaker-guarded retry sequence and
// validates the payload before caching it.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, schema *validation.Schema) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "provider.get", trace.WithAttributes(
		attribute.String("provider.endpoint", endpoint),
	))
	defer span.End()

	key := cacheKey(endpoint, params)
	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("provider", "error").Inc()
			c.logger.Warn("provider cache read failed", map[string]interface{}{
				"endpoint": endpoint,
				"error":    err.Error(),
			})
		case ok:
			metrics.CacheLookups.WithLabelValues("provider", "hit").Inc()
			span.SetAttributes(attribute.Bool("provider.cache_hit", true))
			return raw, nil
		default:
			metrics.CacheLookups.WithLabelValues("provider", "miss").Inc()
		}
	}

	done, err := c.breaker.Allow()
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "circuit_open").Inc()
		c.logger.Warn("provider call rejected, circuit open", map[string]interface{}{
			"endpoint": endpoint,
		})
		openErr := apperrors.NewCircuitOpenError(endpoint, err)
		span.SetStatus(codes.Error, openErr.Error())
		return nil, openErr
	}

	body, err := c.doWithRetry(ctx, endpoint, params)
	if err == nil {
		err = c.validate(endpoint, schema, body)
	}
	done(breakerOutcome(err))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if c.cache != nil {
		if setErr := c.cache.Set(ctx, key, body, cacheTTL(c.config, c.rand())); setErr != nil {
			c.logger.Warn("provider cache write failed", map[string]interface{}{
				"endpoint": endpoint,
				"error":    setErr.Error(),
			})
		}
	}
	return body, nil
}

// breakerOutcome classifies a finished call. A client error still proves
// the upstream answered. Only a caller cancellation is neutral: a deadline
// that expires while the upstream hangs is a timeout like any other.
func breakerOutcome(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apperrors.HasCode(err, apperrors.ErrCodeProviderRequestFailed):
		return OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return OutcomeAbandoned
	default:
		return OutcomeFailure
	}
}

func (c *Client) validate(endpoint string, schema *validation.Schema, body []byte) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(body)
	if err != nil {
		return apperrors.NewResponseInvalidError(endpoint, err)
	}
	if verr := result.Err(); verr != nil {
		return apperrors.NewResponseInvalidError(endpoint, verr)
	}
	return nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := c.config.BaseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var (
		lastErr     error
		rateLimited bool
	)
	attempts := c.config.MaxRetries + 1
	policy := newBackOff(c.config)

	for attempt := 0; attempt < attempts; attempt++ {
		result := c.attempt(ctx, endpoint, target)

		fields := map[string]interface{}{
			"endpoint":  endpoint,
			"attempt":   attempt + 1,
			"status":    result.status,
			"latencyMs": result.latency.Milliseconds(),
		}

		switch {
		case result.err == nil && result.status >= 200 && result.status < 300:
			c.logger.Debug("provider request succeeded", fields)
			return result.body, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case result.err == nil && result.status == http.StatusTooManyRequests:
			rateLimited = true
			lastErr = fmt.Errorf("rate limited (429)")
		case result.err == nil && result.status >= 500:
			rateLimited = false
			lastErr = fmt.Errorf("upstream status %d", result.status)
		case result.err == nil:
			c.logger.Warn("provider request rejected", fields)
			return nil, apperrors.NewRequestFailedError(endpoint, result.status, string(result.body))
		default:
			rateLimited = false
			lastErr = result.err
		}

		if attempt == attempts-1 {
			fields["error"] = lastErr.Error()
			c.logger.Error("provider request failed, retries exhausted", fields)
			break
		}

		delay := policy.NextBackOff()
		reason := "transient"
		if rateLimited {
			reason = "rate_limited"
			if d, ok := parseRetryAfter(result.retryAfter, c.clock.Now()); ok {
				delay = d
			}
		}

		fields["retryIn"] = delay.Milliseconds()
		fields["error"] = lastErr.Error()
		c.logger.Warn("provider request failed, retrying", fields)
		metrics.ProviderRetries.WithLabelValues(endpoint, reason).Inc()

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if rateLimited {
		return nil, apperrors.NewRateLimitedError(endpoint, attempts)
	}
	return nil, apperrors.NewRetriesExhaustedError(endpoint, attempts, lastErr)
}

type attemptResult struct {
	status     int
	body       []byte
	retryAfter string
	latency    time.Duration
	err        error
}

// attempt performs one bounded HTTP call. status is 0 on transport errors.
func (c *Client) attempt(ctx context.Context, endpoint, target string) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return attemptResult{err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		latency := time.Since(start)
		c.observe(endpoint, "error", latency)
		return attemptResult{err: err, latency: latency}
	}
	defer resp.Body.Close()

	limit := int64(maxBody)
	if resp.StatusCode >= 400 {
		limit = maxErrorBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	latency := time.Since(start)
	c.observe(endpoint, strconv.Itoa(resp.StatusCode), latency)
	if err != nil {
		return attemptResult{err: fmt.Errorf("read body: %w", err), latency: latency}
	}

	return attemptResult{
		status:     resp.StatusCode,
		body:       body,
		retryAfter: resp.Header.Get("Retry-After"),
		latency:    latency,
	}
}

func (c *Client) observe(endpoint, status string, latency time.Duration) {
	metrics.ProviderRequests.WithLabelValues(endpoint, status).Inc()
	metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
}
