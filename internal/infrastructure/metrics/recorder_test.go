package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.RequestCreated("travel")
	r.RequestCreated("travel")
	r.RequestCreated("")
	r.DecisionRecorded("approved")
	r.Transition("pending", "in-progress")
	r.LockContention()
	r.OperationFailed("advance")
	r.RemindersSent(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requestsCreated.WithLabelValues("travel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsCreated.WithLabelValues("uncategorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("pending", "in-progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lockContention))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("advance")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.remindersSent))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.DecisionRecorded("rejected")
	r.ObserveHTTP(http.MethodPost, "/api/v1/requests", http.StatusCreated, 20*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `approval_decisions_total{decision="rejected"} 1`)
	assert.Contains(t, string(body), `approval_http_requests_total{method="POST",route="/api/v1/requests",status="201"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
