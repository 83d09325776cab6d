// Package endpoint maintains a pool of interchangeable Solana RPC endpoints
// with health tracking, load-balanced selection and retry with failover.
package endpoint

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aitachi/SolSniperPro/internal/domain"
	"github.com/aitachi/SolSniperPro/internal/solana"
)

// Strategy selects which healthy endpoint serves the next call.
type Strategy int

const (
	// RoundRobin cycles through healthy endpoints with a wrapping cursor.
	RoundRobin Strategy = iota
	// LowestLatency picks the healthy endpoint with the smallest average
	// latency.
	LowestLatency
	// Random picks uniformly over the healthy set.
	Random
)

// unhealthyThreshold is the consecutive-failure count that marks an endpoint
// unhealthy. A single success restores it.
const unhealthyThreshold = 3

// Endpoint is one RPC endpoint with its mutable health record. Health is
// guarded per endpoint so unrelated trades never serialize on a pool-wide
// lock.
type Endpoint struct {
	url    string
	client solana.Client

	mu                  sync.Mutex
	healthy             bool
	consecutiveFailures uint32
	avgLatencyMs        uint64
	totalRequests       uint64
	successfulRequests  uint64
}

// URL returns the endpoint's RPC URL.
func (e *Endpoint) URL() string { return e.url }

// Client returns the RPC client bound to this endpoint.
func (e *Endpoint) Client() solana.Client { return e.client }

// markSuccess records a successful call: resets the failure streak, restores
// health and folds the latency into an exponential moving average
// (7/8 old + 1/8 new).
func (e *Endpoint) markSuccess(latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.healthy = true
	e.consecutiveFailures = 0
	e.totalRequests++
	e.successfulRequests++

	ms := uint64(latency.Milliseconds())
	if e.avgLatencyMs == 0 {
		e.avgLatencyMs = ms
	} else {
		e.avgLatencyMs = (e.avgLatencyMs*7 + ms) / 8
	}
}

// markFailure records a failed call. The third consecutive failure flips the
// endpoint unhealthy.
func (e *Endpoint) markFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures++
	e.totalRequests++
	if e.consecutiveFailures >= unhealthyThreshold {
		e.healthy = false
	}
}

func (e *Endpoint) isHealthy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthy
}

func (e *Endpoint) latencyMs() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avgLatencyMs
}

func (e *Endpoint) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.healthy = true
	e.consecutiveFailures = 0
}

// Health is a point-in-time snapshot of an endpoint's record.
type Health struct {
	URL                 string
	Healthy             bool
	ConsecutiveFailures uint32
	AvgLatencyMs        uint64
	TotalRequests       uint64
	SuccessfulRequests  uint64
}

// SuccessRate returns the fraction of requests that succeeded.
func (h Health) SuccessRate() float64 {
	if h.TotalRequests == 0 {
		return 0
	}
	return float64(h.SuccessfulRequests) / float64(h.TotalRequests)
}

func (e *Endpoint) snapshot() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Health{
		URL:                 e.url,
		Healthy:             e.healthy,
		ConsecutiveFailures: e.consecutiveFailures,
		AvgLatencyMs:        e.avgLatencyMs,
		TotalRequests:       e.totalRequests,
		SuccessfulRequests:  e.successfulRequests,
	}
}

// Observer receives pool events for metrics export.
type Observer interface {
	ObserveRPC(endpoint string, success bool, latency time.Duration)
	SetHealthyEndpoints(healthy, total int)
}

// Pool hands out working endpoints and runs operations with retry and
// failover.
type Pool struct {
	endpoints []*Endpoint
	strategy  Strategy

	cursorMu sync.Mutex
	cursor   int

	maxRetries  uint32
	baseBackoff time.Duration

	observer Observer
	logger   *zap.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithStrategy sets the selection strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Pool) { p.strategy = s }
}

// WithMaxRetries sets the retry budget for ExecuteWithRetry.
func WithMaxRetries(n uint32) Option {
	return func(p *Pool) { p.maxRetries = n }
}

// WithBaseBackoff sets the linear backoff base (delay = base * attempt).
func WithBaseBackoff(d time.Duration) Option {
	return func(p *Pool) { p.baseBackoff = d }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pool) { p.observer = o }
}

// WithPoolLogger attaches a logger.
func WithPoolLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a pool over the given clients. A pool with zero endpoints
// is a configuration fault the process cannot recover from, so it panics.
func NewPool(clients []solana.Client, opts ...Option) *Pool {
	if len(clients) == 0 {
		panic("endpoint: pool configured with zero endpoints")
	}

	p := &Pool{
		endpoints:   make([]*Endpoint, 0, len(clients)),
		strategy:    RoundRobin,
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		logger:      zap.NewNop(),
	}
	for _, c := range clients {
		p.endpoints = append(p.endpoints, &Endpoint{url: c.Endpoint(), client: c, healthy: true})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPoolFromURLs creates a pool of HTTP clients, one per URL, each with the
// given per-call timeout.
func NewPoolFromURLs(urls []string, timeout time.Duration, opts ...Option) *Pool {
	clients := make([]solana.Client, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, solana.NewHTTPClient(url, solana.WithTimeout(timeout)))
	}
	return NewPool(clients, opts...)
}

// Acquire selects a healthy endpoint. When every endpoint is unhealthy it
// fails once, then force-resets the whole pool so the next call can retry
// instead of dead-locking permanently.
func (p *Pool) Acquire() (*Endpoint, error) {
	healthy := make([]*Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		if e.isHealthy() {
			healthy = append(healthy, e)
		}
	}

	if len(healthy) == 0 {
		p.resetAll()
		return nil, domain.NewError(domain.CodeEndpointsUnhealthy, "all RPC endpoints are unhealthy")
	}

	var selected *Endpoint
	switch p.strategy {
	case LowestLatency:
		selected = healthy[0]
		for _, e := range healthy[1:] {
			if e.latencyMs() < selected.latencyMs() {
				selected = e
			}
		}
	case Random:
		selected = healthy[rand.Intn(len(healthy))]
	default:
		p.cursorMu.Lock()
		selected = healthy[p.cursor%len(healthy)]
		p.cursor = (p.cursor + 1) % len(healthy)
		p.cursorMu.Unlock()
	}

	p.logger.Debug("endpoint selected", zap.String("url", selected.url))
	return selected, nil
}

// RecordOutcome updates an endpoint's health record after a call.
func (p *Pool) RecordOutcome(e *Endpoint, success bool, latency time.Duration) {
	if success {
		e.markSuccess(latency)
	} else {
		e.markFailure()
		if !e.isHealthy() {
			p.logger.Warn("endpoint marked unhealthy",
				zap.String("url", e.url),
				zap.Uint32("consecutive_failures", e.snapshot().ConsecutiveFailures))
		}
	}

	if p.observer != nil {
		p.observer.ObserveRPC(e.url, success, latency)
		healthy := 0
		for _, ep := range p.endpoints {
			if ep.isHealthy() {
				healthy++
			}
		}
		p.observer.SetHealthyEndpoints(healthy, len(p.endpoints))
	}
}

// resetAll is the emergency recovery path: every endpoint back to healthy.
func (p *Pool) resetAll() {
	for _, e := range p.endpoints {
		e.reset()
	}
	p.logger.Warn("all endpoints reset to healthy (emergency recovery)")
}

// Operation runs against one endpoint's client.
type Operation func(ctx context.Context, client solana.Client) error

// retryState is the explicit attempt state machine behind ExecuteWithRetry.
type retryState int

const (
	stateAttempting retryState = iota
	stateSucceeded
	stateExhausted
)

// ExecuteWithRetry runs op up to the pool's retry budget, routing each
// attempt through a freshly acquired (possibly different) endpoint, marking
// each attempt's outcome, and sleeping a linear backoff (base * attempt)
// between attempts. Exhausting the budget surfaces the last error.
func (p *Pool) ExecuteWithRetry(ctx context.Context, op Operation) error {
	return p.executeWithBudget(ctx, p.maxRetries, op)
}

// ExecuteWithBudget is ExecuteWithRetry with a per-call retry budget, for
// callers whose attempt count is a per-trade option rather than pool
// configuration. A zero budget falls back to the pool default.
func (p *Pool) ExecuteWithBudget(ctx context.Context, retries uint32, op Operation) error {
	if retries == 0 {
		retries = p.maxRetries
	}
	return p.executeWithBudget(ctx, retries, op)
}

func (p *Pool) executeWithBudget(ctx context.Context, budget uint32, op Operation) error {
	var lastErr error
	state := stateAttempting

	for attempt := uint32(1); state == stateAttempting; attempt++ {
		if attempt > budget {
			state = stateExhausted
			break
		}

		ep, err := p.Acquire()
		if err != nil {
			lastErr = err
			if err := p.backoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		err = op(ctx, ep.client)
		latency := time.Since(start)
		p.RecordOutcome(ep, err == nil, latency)

		if err == nil {
			state = stateSucceeded
			break
		}

		lastErr = err
		p.logger.Warn("RPC operation failed",
			zap.String("url", ep.url),
			zap.Uint32("attempt", attempt),
			zap.Uint32("max_retries", budget),
			zap.Error(err))

		if attempt < budget {
			if err := p.backoff(ctx, attempt); err != nil {
				return err
			}
		}
	}

	if state == stateSucceeded {
		return nil
	}
	if lastErr == nil {
		lastErr = domain.NewError(domain.CodeRPCFailed, "all retry attempts failed")
	}
	if domain.CodeOf(lastErr) == "" {
		lastErr = domain.WrapError(domain.CodeRPCFailed, lastErr, "retries exhausted after %d attempts", budget)
	}
	return lastErr
}

// backoff sleeps the linear delay for the given attempt, honoring ctx.
func (p *Pool) backoff(ctx context.Context, attempt uint32) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.baseBackoff * time.Duration(attempt)):
		return nil
	}
}

// Execute runs an operation returning a value through the pool's retry logic.
func Execute[T any](ctx context.Context, p *Pool, op func(ctx context.Context, client solana.Client) (T, error)) (T, error) {
	return ExecuteBudget(ctx, p, 0, op)
}

// ExecuteBudget is Execute with a per-call retry budget.
func ExecuteBudget[T any](ctx context.Context, p *Pool, retries uint32, op func(ctx context.Context, client solana.Client) (T, error)) (T, error) {
	var result T
	err := p.ExecuteWithBudget(ctx, retries, func(ctx context.Context, client solana.Client) error {
		var opErr error
		result, opErr = op(ctx, client)
		return opErr
	})
	return result, err
}

// Stats returns a snapshot of every endpoint's health record.
func (p *Pool) Stats() []Health {
	stats := make([]Health, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		stats = append(stats, e.snapshot())
	}
	return stats
}

// StartHealthChecker probes every endpoint with getSlot at the given interval
// until ctx is cancelled. A probe timeout counts as a failure like any other
// call.
func (p *Pool) StartHealthChecker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.probeAll(ctx)
			}
		}
	}()
}

func (p *Pool) probeAll(ctx context.Context) {
	for _, e := range p.endpoints {
		start := time.Now()
		_, err := e.client.GetSlot(ctx)
		p.RecordOutcome(e, err == nil, time.Since(start))
	}

	healthy := 0
	for _, e := range p.endpoints {
		if e.isHealthy() {
			healthy++
		}
	}
	p.logger.Info("endpoint health check",
		zap.Int("healthy", healthy),
		zap.Int("total", len(p.endpoints)))
}
