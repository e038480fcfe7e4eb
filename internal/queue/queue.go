// Package queue implements the Queue Manager (§4.1): one FIFO per remote
// host, a concurrency cap per host, and the adaptive spacing from
// internal/hoststats. Each host is owned by exactly one dispatcher
// goroutine, so hoststats.Stats and the host's queue slice never need a
// mutex; the manager-level map of hosts is the only shared structure and is
// guarded by a plain mutex only for the lazy-create path.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	dataimport "github.com/JakeFAU/media-inliner/internal/errors"
	"github.com/JakeFAU/media-inliner/internal/hoststats"
	"github.com/JakeFAU/media-inliner/internal/metrics"
	"github.com/JakeFAU/media-inliner/internal/urlnorm"
)

// Request is an opaque fetch request handed to a Doer. The Queue Manager
// never interprets it beyond using URL for host routing and spacing.
type Request struct {
	URL    string
	Method string
	Header map[string][]string
}

// Response is whatever a Doer produced for a dispatched Request.
type Response struct {
	StatusCode int
	Header     map[string][]string
	Body       []byte
}

// StatusError lets a Doer report a failed HTTP round-trip while still
// surfacing the status code the retry/backoff logic needs to classify.
type StatusError interface {
	error
	StatusCode() int
}

// Doer performs the actual I/O for one attempt of one request. Production
// code wires an *http.Client-backed implementation; tests wire a fake.
type Doer interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Options are the construction-time parameters enumerated in §4.1.
type Options struct {
	BaseWaitOnRetry                time.Duration
	DefaultRequestInterval         time.Duration
	MaxConcurrentRequestsPerDomain int
	MaxRequestInterval             time.Duration
	MinRequestInterval             time.Duration
	MaxRetries                     int
	MinExpectedResponseTime        time.Duration
	RetryableStatusCodes           map[int]struct{}
}

func (o Options) limits() hoststats.Limits {
	return hoststats.Limits{
		DefaultRequestInterval: o.DefaultRequestInterval,
		MinRequestInterval:     o.MinRequestInterval,
		MaxRequestInterval:     o.MaxRequestInterval,
	}
}

func (o Options) isRetryableStatus(code int) bool {
	_, ok := o.RetryableStatusCodes[code]
	return ok
}

// pendingRequest couples a Request with the one-shot sink its caller is
// blocked on. Exactly one goroutine ever writes to resultCh.
type pendingRequest struct {
	ctx      context.Context
	req      Request
	resultCh chan result
}

type result struct {
	resp Response
	err  error
}

// completion is reported by the worker goroutine that ran a dispatched
// request back to the host's owning actor, so the actor (and only the
// actor) can update hoststats.Stats and free a concurrency slot.
type completion struct {
	responseTime time.Duration
	statusCode   int
	retryable    bool
	succeeded    bool
}

// hostEntry is the per-host actor. Everything except the atomics is touched
// exclusively by run(), which is the one goroutine that owns this host.
type hostEntry struct {
	incoming   chan *pendingRequest
	completeCh chan completion
	queued     atomic.Int64
	active     atomic.Int64
}

// Manager is the Queue Manager: it fans fetch requests out across one
// dispatcher goroutine per remote host.
type Manager struct {
	opts Options
	doer Doer
	rnd  func() float64

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

// New builds a Manager that executes requests through doer.
func New(opts Options, doer Doer) *Manager {
	return &Manager{
		opts:  opts,
		doer:  doer,
		rnd:   rand.Float64,
		hosts: make(map[string]*hostEntry),
	}
}

// QueueRequest enqueues req, blocking until it has been dispatched (with
// retries per §4.1's makeRequestWithRetry), the context is cancelled, or the
// manager decides the request cannot be routed (e.g. an unparseable URL).
func (m *Manager) QueueRequest(ctx context.Context, req Request) (Response, error) {
	host, err := urlnorm.Host(req.URL)
	if err != nil {
		metrics.ObserveFetch("invalid", metrics.OutcomeInvalidURL, 0)
		return Response{}, dataimport.New("request", req.URL, dataimport.OpFetch, err)
	}

	entry := m.hostFor(host)

	pr := &pendingRequest{ctx: ctx, req: req, resultCh: make(chan result, 1)}
	entry.queued.Add(1)

	select {
	case entry.incoming <- pr:
	case <-ctx.Done():
		entry.queued.Add(-1)
		return Response{}, ctx.Err()
	}

	select {
	case res := <-pr.resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// AreAllQueuesEmpty reports whether every known host has nothing queued and
// nothing in flight.
func (m *Manager) AreAllQueuesEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.hosts {
		if e.queued.Load() > 0 || e.active.Load() > 0 {
			return false
		}
	}
	return true
}

// WaitForAllQueues blocks, polling every 100ms as §4.1 specifies, until
// AreAllQueuesEmpty is true or ctx is cancelled.
func (m *Manager) WaitForAllQueues(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	if m.AreAllQueuesEmpty() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if m.AreAllQueuesEmpty() {
				return nil
			}
		}
	}
}

func (m *Manager) hostFor(host string) *hostEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.hosts[host]; ok {
		return e
	}

	e := &hostEntry{
		incoming:   make(chan *pendingRequest, 64),
		completeCh: make(chan completion, m.opts.MaxConcurrentRequestsPerDomain),
	}
	m.hosts[host] = e
	go m.run(host, e)
	return e
}

// run is the per-host dispatcher actor. It owns stats and queue exclusively
// and is the only goroutine that ever touches them.
func (m *Manager) run(host string, e *hostEntry) {
	stats := hoststats.New(m.opts.limits())
	var queue []*pendingRequest

	var timer *time.Timer
	armTimer := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d)
	}

	dispatch := func() {
		for len(queue) > 0 && int(e.active.Load()) < m.opts.MaxConcurrentRequestsPerDomain {
			due := stats.DueIn(time.Now())
			if due > 0 {
				jittered := time.Duration(float64(due) * hoststats.DispatchJitter(m.rnd))
				armTimer(jittered)
				return
			}

			pr := queue[0]
			queue = queue[1:]
			e.queued.Add(-1)
			e.active.Add(1)
			stats.LastRequestTime = time.Now()
			stats.RequestsInFlight++
			metrics.SetActiveRequests(host, int(e.active.Load()))

			go m.execute(host, e, stats.MinRequestInterval, pr)
		}
	}

	for {
		select {
		case pr := <-e.incoming:
			queue = append(queue, pr)
			dispatch()
		case c := <-e.completeCh:
			stats.RequestsInFlight--
			e.active.Add(-1)
			metrics.SetActiveRequests(host, int(e.active.Load()))
			if c.succeeded {
				stats.RecordSuccess(m.opts.limits(), c.responseTime, m.opts.MinExpectedResponseTime, m.rnd)
			} else {
				stats.RecordError(m.opts.limits(), c.retryable)
			}
			metrics.SetHostMinInterval(host, stats.MinRequestInterval)
			dispatch()
			// Re-arm a jittered follow-up dispatch so a host that just
			// drained its queue doesn't leave a pending request stranded
			// behind a stale timer (§4.1 step 8).
			armTimer(time.Duration(rand.Int64N(1000)) * time.Millisecond)
		case <-safeTimerC(timer):
			dispatch()
		}
	}
}

func safeTimerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// execute runs makeRequestWithRetry for one dispatched request and reports
// the outcome back to its host's actor and to the blocked caller.
func (m *Manager) execute(host string, e *hostEntry, interval time.Duration, pr *pendingRequest) {
	resp, responseTime, statusCode, retryable, err := m.makeRequestWithRetry(pr.ctx, host, pr.req)

	e.completeCh <- completion{
		responseTime: responseTime,
		statusCode:   statusCode,
		retryable:    retryable,
		succeeded:    err == nil,
	}

	select {
	case pr.resultCh <- result{resp: resp, err: err}:
	default:
	}
}

func fetchOutcome(err error, retryable bool) metrics.Outcome {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case retryable:
		return metrics.OutcomeRetryableError
	default:
		return metrics.OutcomeError
	}
}

// makeRequestWithRetry implements §4.1's retry loop: one attempt plus up to
// MaxRetries retries, sleeping floor(baseWaitOnRetry * (attempt+1) * jitter)
// between them, stopping early on a non-retryable failure. Every attempt is
// recorded with metrics.ObserveFetch.
func (m *Manager) makeRequestWithRetry(ctx context.Context, host string, req Request) (resp Response, responseTime time.Duration, statusCode int, retryable bool, err error) {
	for attempt := 0; attempt <= m.opts.MaxRetries; attempt++ {
		start := time.Now()
		resp, err = m.doer.Do(ctx, req)
		responseTime = time.Since(start)

		if err == nil {
			statusCode = resp.StatusCode
			if isSuccessStatus(statusCode) {
				metrics.ObserveFetch(host, metrics.OutcomeSuccess, responseTime)
				return resp, responseTime, statusCode, false, nil
			}
			// Any other status is a failed dispatch (§7's "non-retryable
			// HTTP" row): only the configured codes get another attempt,
			// everything else propagates as a final error below.
			retryable = m.opts.isRetryableStatus(statusCode)
			err = fmt.Errorf("non-success status %d from %s", statusCode, req.URL)
		} else {
			var se StatusError
			if errors.As(err, &se) {
				statusCode = se.StatusCode()
				retryable = m.opts.isRetryableStatus(statusCode)
			} else {
				statusCode = 0
				retryable = false
			}
		}
		metrics.ObserveFetch(host, fetchOutcome(err, retryable), responseTime)

		if !retryable || attempt == m.opts.MaxRetries {
			return Response{StatusCode: statusCode}, responseTime, statusCode, retryable, err
		}

		wait := time.Duration(float64(m.opts.BaseWaitOnRetry) * float64(attempt+1) * hoststats.DispatchJitter(m.rnd))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return Response{StatusCode: statusCode}, responseTime, statusCode, retryable, ctx.Err()
		}
	}

	return Response{StatusCode: statusCode}, responseTime, statusCode, retryable, err
}

// isSuccessStatus reports whether code is a 2xx response.
func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
