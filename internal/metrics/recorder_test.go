package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.PageView("ok")
	r.PageView("ok")
	r.PageView("not_found")
	r.MetaLookup(true)
	r.MetaLookup(false)
	r.SearchQuery(true)
	r.Reindex(time.Second, false)

	require.Equal(t, 2.0, testutil.ToFloat64(r.pageViews.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.pageViews.WithLabelValues("not_found")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.metaLookups.WithLabelValues("page")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.metaLookups.WithLabelValues("default")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.reindexRuns.WithLabelValues("failure")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.PageView("ok")
	r.MetaLookup(true)
	r.BreadcrumbDepth(3)
	r.SearchQuery(false)
	r.Reindex(time.Millisecond, true)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder(nil)
	r.BreadcrumbDepth(2)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "novapages_breadcrumb_depth"))
}
