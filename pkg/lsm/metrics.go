package lsm

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors (§4.5's "statistics are
// tracked atomically"): compaction runs/bytes, tombstones dropped, flushes,
// and WAL fsyncs. NewMetrics registers the collectors only when given a
// Registerer; Open passes nil, so an Engine's collectors are not registered
// with any registry and opening several Engines in one process never
// double-registers.
type Metrics struct {
	CompactionsTotal  prometheus.Counter
	BytesReclaimed    prometheus.Counter
	TombstonesDropped prometheus.Counter
	FlushesTotal      prometheus.Counter
	WALFsyncsTotal    prometheus.Counter
	// StripeMemtableSize is created (and registered with reg) but the
	// engine never sets it, so every stripe reads 0.
	StripeMemtableSize *prometheus.GaugeVec
}

// NewMetrics builds a fresh Metrics struct registered against reg. Pass
// prometheus.NewRegistry() in tests/examples to avoid collisions with the
// global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stonedb_compactions_total",
			Help: "Number of compaction runs completed.",
		}),
		BytesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stonedb_compaction_bytes_reclaimed_total",
			Help: "Bytes reclaimed by dropping superseded records during compaction.",
		}),
		TombstonesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stonedb_tombstones_dropped_total",
			Help: "Tombstones removed once no older SST can still observe them.",
		}),
		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stonedb_memtable_flushes_total",
			Help: "Number of memtable-to-SST flushes.",
		}),
		WALFsyncsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stonedb_wal_fsyncs_total",
			Help: "Number of WAL fsyncs issued on the write path.",
		}),
		StripeMemtableSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stonedb_stripe_memtable_bytes",
			Help: "Approximate in-memory size of each stripe's active memtable.",
		}, []string{"stripe"}),
	}
	if reg != nil {
		reg.MustRegister(m.CompactionsTotal, m.BytesReclaimed, m.TombstonesDropped,
			m.FlushesTotal, m.WALFsyncsTotal, m.StripeMemtableSize)
	}
	return m
}
