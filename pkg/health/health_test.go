package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, fn http.HandlerFunc) (int, probeResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp probeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveEndpoint_DefaultsHealthy(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(10_000))

	code, resp := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["goroutines"])
}

func TestReadyEndpoint_GatedOnSetReady(t *testing.T) {
	h := New()

	code, resp := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCheck_FailureThreshold(t *testing.T) {
	c := newCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	// One or two failures keep the check healthy; the third flips it.
	c.run(context.Background())
	c.run(context.Background())
	assert.True(t, c.healthy.Load())

	c.run(context.Background())
	assert.False(t, c.healthy.Load())
}

func TestCheck_SingleSuccessRecovers(t *testing.T) {
	var fail bool
	c := newCheck("db", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	})

	fail = true
	for i := 0; i < failureThreshold; i++ {
		c.run(context.Background())
	}
	require.False(t, c.healthy.Load())

	fail = false
	c.run(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestReadyEndpoint_ReportsFailingCheckError(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	for i := 0; i < failureThreshold; i++ {
		h.readiness[0].run(context.Background())
	}

	code, resp := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", resp.Checks["db"])
}

func TestStartStop(t *testing.T) {
	h := New()
	ran := make(chan struct{}, 1)
	h.AddLivenessCheck("ping", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
}
