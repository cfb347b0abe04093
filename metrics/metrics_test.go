package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-dedup/asset"
)

func TestPrometheus_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg)
	require.NoError(t, err)

	p.OnJob(asset.JobScanOne, asset.StatusSuccess, time.Millisecond)
	p.OnJob(asset.JobScanOne, asset.StatusSuccess, time.Millisecond)
	p.OnJob(asset.JobScanOne, asset.StatusFailed, time.Millisecond)
	p.OnMerge(2, true)
	p.OnSubmit(5)
	p.OnSearch(time.Millisecond, 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.jobs.WithLabelValues(string(asset.JobScanOne), string(asset.StatusSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.merges))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.absorbed))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.created))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.submitted))

	_, err = New(reg)
	assert.Error(t, err, "collectors register once per registry")
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p, err := New(reg)
	require.NoError(t, err)
	p.OnSubmit(1)

	r := NewRouter(reg, pinger{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dedup_jobs_submitted_total 1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = NewRouter(reg, pinger{err: errors.New("closed")})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
