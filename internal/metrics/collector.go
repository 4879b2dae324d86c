// Package metrics exposes the daemon's CS/PIT/FIB/face counters as
// Prometheus gauges, grounded on runZeroInc-sockstats's
// pkg/exporter.TCPInfoCollector: a custom prometheus.Collector that
// computes every value at scrape time from the live tables rather than
// tracking counters incrementally, which fits the single-threaded core
// naturally (no locking, since Collect always runs between dispatcher
// ticks).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccnx-go/ccnd/internal/face"
	"github.com/ccnx-go/ccnd/internal/table"
)

// Collector reads the daemon's live tables on every Prometheus scrape.
type Collector struct {
	CS    *table.CS
	Pit   *table.PIT
	Tree  *table.NameTree
	Faces *face.Table

	csEntries       *prometheus.Desc
	csHits          *prometheus.Desc
	csMisses        *prometheus.Desc
	pitEntries      *prometheus.Desc
	fibPrefixes     *prometheus.Desc
	faceCount       *prometheus.Desc
	facePending     *prometheus.Desc
	faceActivity    *prometheus.Desc
	faceSurplusSend *prometheus.Desc
}

// NewCollector builds a Collector bound to the daemon's live tables.
func NewCollector(cs *table.CS, pit *table.PIT, tree *table.NameTree, faces *face.Table) *Collector {
	return &Collector{
		CS: cs, Pit: pit, Tree: tree, Faces: faces,

		csEntries:       prometheus.NewDesc("ccnd_cs_entries", "Live Content Store entries.", nil, nil),
		csHits:          prometheus.NewDesc("ccnd_cs_hits_total", "Content Store lookups satisfied from cache.", nil, nil),
		csMisses:        prometheus.NewDesc("ccnd_cs_misses_total", "Content Store lookups that missed.", nil, nil),
		pitEntries:      prometheus.NewDesc("ccnd_pit_entries", "Live Pending Interest Table entries.", nil, nil),
		fibPrefixes:     prometheus.NewDesc("ccnd_fib_prefixes", "Materialised name-prefix entries.", nil, nil),
		faceCount:       prometheus.NewDesc("ccnd_faces", "Currently enrolled faces.", nil, nil),
		facePending:     prometheus.NewDesc("ccnd_face_pending_interests", "Pending Interests awaiting reply, per face.", []string{"faceid"}, nil),
		faceActivity:    prometheus.NewDesc("ccnd_face_activity_total", "Envelopes processed, per face.", []string{"faceid"}, nil),
		faceSurplusSend: prometheus.NewDesc("ccnd_face_surplus_send_total", "Sends beyond the preferred-provider threshold, per face.", []string{"faceid"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.csEntries
	descs <- c.csHits
	descs <- c.csMisses
	descs <- c.pitEntries
	descs <- c.fibPrefixes
	descs <- c.faceCount
	descs <- c.facePending
	descs <- c.faceActivity
	descs <- c.faceSurplusSend
}

// Collect implements prometheus.Collector, reading every value fresh
// from the live tables.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	metrics <- prometheus.MustNewConstMetric(c.csEntries, prometheus.GaugeValue, float64(c.CS.Len()))
	metrics <- prometheus.MustNewConstMetric(c.csHits, prometheus.CounterValue, float64(c.CS.Hits))
	metrics <- prometheus.MustNewConstMetric(c.csMisses, prometheus.CounterValue, float64(c.CS.Misses))
	metrics <- prometheus.MustNewConstMetric(c.pitEntries, prometheus.GaugeValue, float64(c.Pit.Len()))
	metrics <- prometheus.MustNewConstMetric(c.fibPrefixes, prometheus.GaugeValue, float64(c.Tree.Len()))

	n := 0
	c.Faces.ForEach(func(f *face.Face) {
		n++
		id := strconv.FormatUint(f.ID, 10)
		metrics <- prometheus.MustNewConstMetric(c.facePending, prometheus.GaugeValue, float64(f.PendingInterestCount), id)
		metrics <- prometheus.MustNewConstMetric(c.faceActivity, prometheus.CounterValue, float64(f.ActivityCount), id)
		metrics <- prometheus.MustNewConstMetric(c.faceSurplusSend, prometheus.CounterValue, float64(f.SurplusSendCount), id)
	})
	metrics <- prometheus.MustNewConstMetric(c.faceCount, prometheus.GaugeValue, float64(n))
}
