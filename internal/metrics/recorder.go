// Package metrics records page-serving metrics with Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the metric hooks used by services and handlers.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	once            sync.Once
	registry        *prom.Registry
	pageViews       *prom.CounterVec
	metaLookups     *prom.CounterVec
	breadcrumbDepth prom.Histogram
	searchQueries   *prom.CounterVec
	reindexRuns     *prom.CounterVec
	reindexDuration prom.Histogram
}

// NewRecorder constructs and registers all collectors on reg (a fresh registry when nil).
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{registry: reg}
	r.once.Do(func() {
		r.pageViews = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "novapages",
			Name:      "page_views_total",
			Help:      "Page requests by outcome",
		}, []string{"outcome"})
		r.metaLookups = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "novapages",
			Name:      "meta_lookups_total",
			Help:      "Meta lookups by result (page or default)",
		}, []string{"result"})
		r.breadcrumbDepth = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "novapages",
			Name:      "breadcrumb_depth",
			Help:      "Number of ancestor entries in built breadcrumb trails",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 16, 32},
		})
		r.searchQueries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "novapages",
			Name:      "search_queries_total",
			Help:      "Search queries by result",
		}, []string{"result"})
		r.reindexRuns = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "novapages",
			Name:      "reindex_runs_total",
			Help:      "Search index rebuilds by result",
		}, []string{"result"})
		r.reindexDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "novapages",
			Name:      "reindex_duration_seconds",
			Help:      "Search index rebuild duration",
			Buckets:   prom.DefBuckets,
		})
		reg.MustRegister(r.pageViews, r.metaLookups, r.breadcrumbDepth, r.searchQueries, r.reindexRuns, r.reindexDuration)
		reg.MustRegister(collectors.NewGoCollector())
	})
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) PageView(outcome string) {
	if r == nil || r.pageViews == nil {
		return
	}
	r.pageViews.WithLabelValues(outcome).Inc()
}

func (r *Recorder) MetaLookup(found bool) {
	if r == nil || r.metaLookups == nil {
		return
	}
	result := "default"
	if found {
		result = "page"
	}
	r.metaLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) BreadcrumbDepth(ancestors int) {
	if r == nil || r.breadcrumbDepth == nil {
		return
	}
	r.breadcrumbDepth.Observe(float64(ancestors))
}

func (r *Recorder) SearchQuery(ok bool) {
	if r == nil || r.searchQueries == nil {
		return
	}
	r.searchQueries.WithLabelValues(result(ok)).Inc()
}

func (r *Recorder) Reindex(d time.Duration, ok bool) {
	if r == nil || r.reindexRuns == nil {
		return
	}
	r.reindexRuns.WithLabelValues(result(ok)).Inc()
	r.reindexDuration.Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
