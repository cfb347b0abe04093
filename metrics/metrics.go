// Package metrics exports duplicate detection metrics to Prometheus and
// serves them, with a health probe, over a gin router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viant/sqlite-dedup/asset"
)

// Prometheus implements duplicate.Observer.
type Prometheus struct {
	jobs       *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec
	search     *prometheus.HistogramVec
	candidates prometheus.Histogram
	merges     prometheus.Counter
	absorbed   prometheus.Counter
	created    prometheus.Counter
	submitted  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dedup_jobs_total",
			Help: "Jobs handled by name and status",
		}, []string{"job", "status"}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dedup_job_duration_seconds",
			Help:    "Job duration by name",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		search: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dedup_search_duration_seconds",
			Help:    "Latency of similarity searches",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dedup_search_candidates",
			Help:    "Candidates returned per search",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_merges_total",
			Help: "Cluster merges applied",
		}),
		absorbed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_groups_absorbed_total",
			Help: "Groups absorbed into another group",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_groups_created_total",
			Help: "Groups created",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dedup_jobs_submitted_total",
			Help: "Per-asset jobs submitted by scan-all",
		}),
	}
	for _, c := range []prometheus.Collector{p.jobs, p.jobLatency, p.search, p.candidates, p.merges, p.absorbed, p.created, p.submitted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) OnJob(job asset.JobName, status asset.Status, d time.Duration) {
	p.jobs.WithLabelValues(string(job), string(status)).Inc()
	p.jobLatency.WithLabelValues(string(job)).Observe(d.Seconds())
}

func (p *Prometheus) OnSearch(d time.Duration, candidates int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.search.WithLabelValues(status).Observe(d.Seconds())
	if err == nil {
		p.candidates.Observe(float64(candidates))
	}
}

func (p *Prometheus) OnMerge(sources int, created bool) {
	p.merges.Inc()
	p.absorbed.Add(float64(sources))
	if created {
		p.created.Inc()
	}
}

func (p *Prometheus) OnSubmit(jobs int) { p.submitted.Add(float64(jobs)) }
