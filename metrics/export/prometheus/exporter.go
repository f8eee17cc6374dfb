package prometheus

import (
	"net/http"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *webster.Engine.
type MetricsSource interface {
	MetricsSnapshot() webster.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   webster.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   webster.MetricID
	desc *prometheus.Desc
}

// Exporter is a prometheus.Collector that reads a fresh snapshot on every
// scrape.
type Exporter struct {
	source       MetricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

func NewExporter(source MetricsSource) *Exporter {
	e := &Exporter{
		source:       source,
		counters:     make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:   make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
}

// Collect emits nothing while engine metrics are disabled, except the audit
// drop counter once it is non-zero.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	if len(snapshot.Counters) > 0 {
		for _, c := range e.counters {
			ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
		}
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		buckets := internaldefs.NormalizeBuckets(raw)
		cumulative := internaldefs.CumulativeBuckets(buckets)
		upper := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, bound := range internaldefs.HistogramBounds {
			upper[bound] = cumulative[i]
		}
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], internaldefs.ApproxSum(buckets), upper)
	}

	if dropped := e.source.AuditDropped(); dropped > 0 || len(snapshot.Counters) > 0 {
		ch <- prometheus.MustNewConstMetric(e.auditDropped, prometheus.CounterValue, float64(dropped))
	}
}

// Registry returns a fresh registry holding the exporter plus the Go runtime
// and process collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		e,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the exporter in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	reg := e.Registry()
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
