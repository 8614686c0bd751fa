package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_SourceFetched(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SourceFetched("emails", false, 10*time.Millisecond)
	m.SourceFetched("calls", true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFetchFailures.WithLabelValues("emails")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SourceFetchFailures.WithLabelValues("calls")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SourceFetchDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.SourceFetched("calls", false, time.Second)
	m.InboxLoaded(3)
	m.InboxBusy()
	m.ValidationFailed("create_call")
	m.Created("call", "api")
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.InboxBusy()
	m.ValidationFailed("create_chat")
	m.Created("chat", "api")
	m.Created("call", "telephony")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboxRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("create_chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommunicationsCreated.WithLabelValues("call", "telephony")))
}

func TestMetrics_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/v1/communications/calls/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/communications/calls/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration, "crm_http_request_duration_seconds"))
}
