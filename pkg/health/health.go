// Package health provides liveness and readiness probe endpoints. Checks run
// in background goroutines with failure/success thresholds so a single slow
// poll does not flap the reported state.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// check holds one registered probe and its state. healthy and lastErr are
// read by HTTP handlers from arbitrary goroutines; the counters are only
// touched by the single ticker goroutine.
type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails, oks int
}

const (
	failureThreshold = 3
	successThreshold = 1
)

func (c *check) run(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(cctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		if c.fails++; c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	if c.oks++; c.oks >= successThreshold {
		c.healthy.Store(true)
	}
}

// Health manages liveness and readiness checks for the daemon.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health in the not-ready state; call SetReady(true) once
// initialization finishes.
func New() *Health {
	return &Health{}
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)
	return c
}

// AddLivenessCheck registers a liveness probe.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a readiness probe.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn))
}

// Start launches the background poller running every interval.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	all := append(append([]*check{}, h.liveness...), h.readiness...)
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			for _, c := range all {
				c.run(ctx)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the background poller.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the top-level readiness gate.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Health) respond(w http.ResponseWriter, checks []*check, gate bool) {
	resp := probeResponse{Status: "ok", Checks: map[string]string{}}
	healthy := gate
	for _, c := range checks {
		if c.healthy.Load() {
			resp.Checks[c.name] = "ok"
			continue
		}
		healthy = false
		msg := "failing"
		if p := c.lastErr.Load(); p != nil && *p != nil {
			msg = (*p).Error()
		}
		resp.Checks[c.name] = msg
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		resp.Status = "unavailable"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// LiveEndpoint serves the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := h.liveness
	h.mu.RUnlock()
	h.respond(w, checks, true)
}

// ReadyEndpoint serves the readiness probe.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()
	h.respond(w, checks, h.ready.Load())
}

// GoroutineCountCheck fails when the process exceeds max goroutines, a cheap
// proxy for leaked print jobs.
func GoroutineCountCheck(max int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > max {
			return fmt.Errorf("%d goroutines running, max %d", n, max)
		}
		return nil
	}
}
