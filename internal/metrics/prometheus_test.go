package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersNoopBeforeInit(t *testing.T) {
	promMu.Lock()
	promMetrics = nil
	promMu.Unlock()

	RecordFetch("projects", time.Millisecond, true)
	RecordMutation("projects", "create", time.Millisecond, false)
	RecordPersist("read", "ok")

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Nil(t, PrometheusRegistry())
}

func TestStoreCounters(t *testing.T) {
	InitPrometheus("folio", nil)
	pm := current()

	RecordFetch("projects", 20*time.Millisecond, true)
	RecordFetch("projects", 5*time.Millisecond, false)
	RecordFetchCoalesced("projects")
	RecordFetchCoalesced("projects")
	RecordFetchSkipped("skills")
	SetStoreStatus("hero", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.fetchesTotal.WithLabelValues("projects", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.fetchesTotal.WithLabelValues("projects", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.fetchesCoalesced.WithLabelValues("projects")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.fetchesSkipped.WithLabelValues("skills")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.storeStatus.WithLabelValues("hero")))
}

func TestMutationRollbackCounted(t *testing.T) {
	InitPrometheus("folio", nil)
	pm := current()

	RecordMutation("blog", "update", time.Millisecond, true)
	RecordMutation("blog", "update", time.Millisecond, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.mutationsTotal.WithLabelValues("blog", "update", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.mutationsTotal.WithLabelValues("blog", "update", "rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.rollbacksTotal.WithLabelValues("blog")))
}

func TestPrometheusHandlerServesRegistry(t *testing.T) {
	InitPrometheus("folio", nil)
	RecordPersist("write", "quota")

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `folio_persist_operations_total{op="write",outcome="quota"} 1`)
}
