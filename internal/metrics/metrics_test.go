// internal/metrics/metrics_test.go
package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRecorder(t *testing.T) {
	r := New()
	r.CycleStarted()
	r.CycleStarted()
	r.CycleFinished(time.Second)
	r.StageFault("cognition", "rateLimit")
	r.StageFault("cognition", "rateLimit")
	r.StageFault("perception", "capture")
	r.Dispatch("click", "executed", "")
	r.Inference("operation", 2*time.Second)
	r.SessionStarted()
	r.SessionEnded("finished")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cyclesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageFaultsTotal.WithLabelValues("cognition", "rateLimit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageFaultsTotal.WithLabelValues("perception", "capture")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dispatchTotal.WithLabelValues("click", "executed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionsTotal.WithLabelValues("finished")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.sessionsActive))
	assert.Equal(t, 1, testutil.CollectAndCount(r.cycleDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CycleStarted()
		r.CycleFinished(time.Second)
		r.StageFault("x", "y")
		r.Dispatch("a", "b", "c")
		r.Inference("operation", time.Second)
		r.SessionStarted()
		r.SessionEnded("aborted")
	})
	assert.Nil(t, r.Registry())
}

func TestHandler(t *testing.T) {
	r := New()
	r.Dispatch("type", "skipped", "INVALID_COORDINATE")
	srv := httptest.NewServer(NewServer("127.0.0.1:0", r, zaptest.NewLogger(t)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `medipilot_dispatch_total{action="type",code="INVALID_COORDINATE",status="skipped"} 1`)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerRunAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", New(), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	addr := s.Addr(waitCtx)
	require.NotNil(t, addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerListenError(t *testing.T) {
	s := NewServer("256.0.0.1:bad", New(), zaptest.NewLogger(t))
	err := s.Run(context.Background())
	assert.Error(t, err)
}
