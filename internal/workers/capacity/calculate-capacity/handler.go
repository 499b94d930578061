// internal/workers/capacity/calculate-capacity/handler.go
package calculatecapacity

import (
	"context"
	"fmt"
	"sync"
	"time"

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
	"capacity-engine/internal/common/observability"
	"capacity-engine/internal/common/provider"
	"capacity-engine/internal/common/validation"
	"capacity-engine/internal/models"
	reconcileavailability "capacity-engine/internal/workers/capacity/reconcile-availability"
	recorddecision "capacity-engine/internal/workers/capacity/record-decision"
	resolvetechnicians "capacity-engine/internal/workers/capacity/resolve-technicians"
)

const (
	TaskType = "calculate-capacity"

	cacheKeyPrefix = "capacity:"
)

type Provider interface {
	GetEmployees(ctx context.Context) ([]models.Employee, error)
	GetBookingWindows(ctx context.Context, date string) ([]models.BookingWindow, error)
	GetJobs(ctx context.Context, filter provider.JobFilter) ([]models.Job, error)
}

type Resolver interface {
	Resolve(ctx context.Context, employees []models.Employee) *resolvetechnicians.Output
}

type Reconciler interface {
	Reconcile(ctx context.Context, input *reconcileavailability.Input) (*reconcileavailability.Output, error)
}

type Recorder interface {
	Record(ctx context.Context, d *recorddecision.Decision) error
}

type HandlerOptions struct {
	Config        *Config
	Provider      Provider
	Resolver      Resolver
	Reconciler    Reconciler
	Cache         cache.Cache // optional
	Recorder      Recorder    // optional
	Clock         clock.Clock
	Logger        logger.Logger
	Observability *observability.Observability
}

// Handler computes the capacity decision for a date. Results are cached
// per date without the requester's ZIP, which is applied on the way out.
type Handler struct {
	config     *Config
	provider   Provider
	resolver   Resolver
	reconciler Reconciler
	cache      cache.Cache
	recorder   Recorder
	clock      clock.Clock
	logger     logger.Logger
	obs        *observability.Observability
	tracer     trace.Tracer
}

func NewHandler(opts HandlerOptions) *Handler {
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewReal()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := opts.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}

	return &Handler{
		config:     opts.Config,
		provider:   opts.Provider,
		resolver:   opts.Resolver,
		reconciler: opts.Reconciler,
		cache:      opts.Cache,
		recorder:   opts.Recorder,
		clock:      clk,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
		obs:        obs,
		tracer:     otel.Tracer("capacity-engine/capacity"),
	}
}

// Now returns the current time in the operating timezone.
func (h *Handler) Now() time.Time {
	return h.clock.Now().In(h.config.Location)
}

// DateFor returns the local date offset days from today.
func (h *Handler) DateFor(offset int) string {
	now := h.Now()
	// noon avoids DST edges when adding days
	return time.Date(now.Year(), now.Month(), now.Day()+offset, 12, 0, 0, 0, h.config.Location).Format("2006-01-02")
}

// FallbackTTL is how long a degraded payload may be cached by clients.
func (h *Handler) FallbackTTL() time.Duration {
	return h.config.FallbackTTL
}

// UICopyKey returns the UI copy selection key for a state.
func (h *Handler) UICopyKey(state models.CapacityState) string {
	return uiCopyKey(h.config, state)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*models.CapacityResponse, error) {
	if input == nil {
		return nil, apperrors.NewInvalidRequestError("input is required")
	}
	if input.Zip != "" && !validation.ValidateZip(input.Zip) {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("zip must be 5 digits, got %q", input.Zip))
	}
	date := input.Date
	if date == "" {
		date = h.DateFor(0)
	}
	if !validation.ValidateDate(date) {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid date %q", date))
	}

	var snap *snapshot
	if !input.ForceRefresh {
		snap = h.cached(ctx, date)
	}
	if snap == nil {
		var err error
		snap, err = h.compute(ctx, date)
		if err != nil {
			return nil, err
		}
		h.store(ctx, date, snap)
	}

	return h.forZip(snap, input.Zip), nil
}

func (h *Handler) cached(ctx context.Context, date string) *snapshot {
	if h.cache == nil {
		return nil
	}
	snap, ok, err := cache.GetJSON[snapshot](ctx, h.cache, cacheKeyPrefix+date)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("capacity", "error").Inc()
		h.logger.Warn("capacity cache read failed", map[string]interface{}{"date": date, "error": err.Error()})
		return nil
	}
	if !ok || !snap.Response.ExpiresAt.After(h.clock.Now()) {
		metrics.CacheLookups.WithLabelValues("capacity", "miss").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("capacity", "hit").Inc()
	return &snap
}

func (h *Handler) store(ctx context.Context, date string, snap *snapshot) {
	if h.cache == nil {
		return
	}
	ttl := snap.Response.ExpiresAt.Sub(h.clock.Now())
	if ttl <= 0 {
		return
	}
	if err := cache.SetJSON(ctx, h.cache, cacheKeyPrefix+date, snap, ttl); err != nil {
		h.logger.Warn("capacity cache write failed", map[string]interface{}{"date": date, "error": err.Error()})
	}
}

// forZip copies the cached result and applies the requester's express eligibility.
func (h *Handler) forZip(snap *snapshot, zip string) *models.CapacityResponse {
	resp := snap.Response
	resp.Technicians = append([]models.TechnicianCapacity(nil), snap.Response.Technicians...)
	resp.Zip = zip

	eligible, tier := expressEligibility(h.config, resp.Overall.State, resp.Overall.Score, zip)
	resp.ExpressEligible = eligible
	resp.ZipTier = tier
	if eligible {
		resp.ExpressWindows = append([]models.ExpressWindow{}, snap.Response.ExpressWindows...)
	} else {
		resp.ExpressWindows = []models.ExpressWindow{}
	}
	return &resp
}

type fetched struct {
	employees []models.Employee
	windows   []models.BookingWindow
	jobs      []models.Job
}

func (h *Handler) compute(ctx context.Context, date string) (*snapshot, error) {
	start := h.clock.Now()
	ctx, span := h.tracer.Start(ctx, "capacity.calculate", trace.WithAttributes(attribute.String("date", date)))
	defer span.End()

	target, err := time.ParseInLocation("2006-01-02", date, h.config.Location)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid date %q", date))
	}

	data, err := h.fetch(ctx, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewCalculationFailedError(date, err).WithMetadata("stage", "fetch")
	}

	resolved := h.resolver.Resolve(ctx, data.employees)
	now := h.Now()

	rec, err := h.reconciler.Reconcile(ctx, &reconcileavailability.Input{
		Date:        date,
		Now:         now,
		Technicians: resolved.Technicians,
		Windows:     data.windows,
		Jobs:        data.jobs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewCalculationFailedError(date, err).WithMetadata("stage", "reconcile")
	}

	techs := scoreTechnicians(resolved.Technicians, rec.Windows)
	score := overallScore(techs)
	gridWindows := 0
	for _, w := range rec.Windows {
		if w.Calculated {
			gridWindows++
		}
	}

	state, rule := classify(h.config, dayFacts{
		now:             now,
		target:          target,
		providerWindows: rec.ProviderWindows,
		gridWindows:     gridWindows,
		lastSlotEnd:     rec.LastSlotEnd,
		openTechnicians: openTechnicians(techs),
		score:           score,
	})

	computedAt := h.clock.Now()
	snap := &snapshot{
		Rule: rule,
		Response: models.CapacityResponse{
			Date:           date,
			Overall:        models.OverallCapacity{Score: score, State: state},
			Technicians:    techs,
			UICopyKey:      uiCopyKey(h.config, state),
			ExpiresAt:      computedAt.Add(h.config.CacheTTL),
			ExpressWindows: consolidate(rec.Windows, resolved.Technicians),
			ComputedAt:     computedAt,
		},
	}

	duration := h.clock.Now().Sub(start)
	requestID := commonhttp.RequestIDFromContext(ctx)
	h.logger.Info("capacity decision", map[string]interface{}{
		"date":            date,
		"state":           string(state),
		"score":           score,
		"rule":            rule,
		"technicians":     len(techs),
		"providerWindows": rec.ProviderWindows,
		"expressWindows":  len(snap.Response.ExpressWindows),
		"requestId":       requestID,
		"durationMs":      duration.Milliseconds(),
	})
	metrics.CapacityDecisions.WithLabelValues(string(state)).Inc()
	metrics.CapacityCalculationDuration.Observe(duration.Seconds())
	h.obs.RecordCalculation(ctx, string(state), duration)
	span.SetAttributes(attribute.String("state", string(state)), attribute.Float64("score", score))

	h.record(ctx, snap, rec, requestID)
	return snap, nil
}

// fetch runs the three provider reads concurrently; the first failure wins.
func (h *Handler) fetch(ctx context.Context, day time.Time) (*fetched, error) {
	if h.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.FetchTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	date := day.Format("2006-01-02")
	filter := provider.JobFilter{
		From:     day,
		To:       time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location()),
		Statuses: models.ActiveWorkStatuses,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	result := &fetched{}
	errChan := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		employees, err := h.provider.GetEmployees(ctx)
		if err != nil {
			errChan <- fmt.Errorf("employees: %w", err)
			cancel()
			return
		}
		mu.Lock()
		result.employees = employees
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		windows, err := h.provider.GetBookingWindows(ctx, date)
		if err != nil {
			errChan <- fmt.Errorf("booking windows: %w", err)
			cancel()
			return
		}
		mu.Lock()
		result.windows = windows
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		jobs, err := h.provider.GetJobs(ctx, filter)
		if err != nil {
			errChan <- fmt.Errorf("jobs: %w", err)
			cancel()
			return
		}
		mu.Lock()
		result.jobs = jobs
		mu.Unlock()
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	// the first error is the cause; later ones are usually the cancellation
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Fallback builds the degraded NEXT_DAY payload served when a calculation
// fails. It is never cached server side; clients may keep it for FallbackTTL.
func (h *Handler) Fallback(ctx context.Context, date, zip string, cause error) *models.CapacityResponse {
	requestID := commonhttp.RequestIDFromContext(ctx)
	reason := apperrors.NewErrorHandler(h.logger).HandleCapacityError(cause, map[string]interface{}{
		"date":      date,
		"zip":       zip,
		"requestId": requestID,
	})
	metrics.CapacityFallbacks.WithLabelValues(reason).Inc()
	h.obs.RecordFallback(ctx, reason)

	now := h.clock.Now()
	resp := &models.CapacityResponse{
		Date:           date,
		Overall:        models.OverallCapacity{Score: 0, State: models.StateNextDay},
		Technicians:    []models.TechnicianCapacity{},
		UICopyKey:      uiCopyKey(h.config, models.StateNextDay),
		ExpiresAt:      now.Add(h.config.FallbackTTL),
		Zip:            zip,
		ZipTier:        h.config.ZipTiers[zip],
		ExpressWindows: []models.ExpressWindow{},
		Degraded:       true,
		DegradedReason: reason,
		ComputedAt:     now,
	}

	if h.recorder != nil {
		d := &recorddecision.Decision{
			Date:           date,
			State:          string(models.StateNextDay),
			Rule:           RuleFallback,
			Degraded:       true,
			DegradedReason: reason,
			RequestID:      requestID,
			ComputedAt:     now,
		}
		if err := h.recorder.Record(ctx, d); err != nil {
			h.logger.Warn("capacity decision not recorded", map[string]interface{}{"date": date, "error": err.Error()})
		}
	}
	return resp
}

func (h *Handler) record(ctx context.Context, snap *snapshot, rec *reconcileavailability.Output, requestID string) {
	if h.recorder == nil {
		return
	}
	resp := snap.Response
	openWindows := 0
	for _, w := range rec.Windows {
		if w.Available {
			openWindows++
		}
	}
	d := &recorddecision.Decision{
		Date:            resp.Date,
		State:           string(resp.Overall.State),
		Rule:            snap.Rule,
		Score:           resp.Overall.Score,
		Technicians:     len(resp.Technicians),
		OpenWindows:     openWindows,
		ProviderWindows: rec.ProviderWindows,
		ExpressWindows:  len(resp.ExpressWindows),
		RequestID:       requestID,
		ComputedAt:      resp.ComputedAt,
	}
	if err := h.recorder.Record(ctx, d); err != nil {
		h.logger.Warn("capacity decision not recorded", map[string]interface{}{
			"date":  resp.Date,
			"error": err.Error(),
		})
	}
}
