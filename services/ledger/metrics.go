package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLedgerBlocks          prometheus.Counter
	prometheusLedgerHeight          prometheus.Gauge
	prometheusLedgerCreated         prometheus.Counter
	prometheusLedgerSpent           prometheus.Counter
	prometheusLedgerCoinbaseCreated prometheus.Counter
	prometheusLedgerPhaseDuration   *prometheus.HistogramVec

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusLedgerBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "blocks",
			Help:      "Number of blocks applied to the ledger",
		},
	)
	prometheusLedgerHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "height",
			Help:      "Height of the last block whose phases all committed",
		},
	)
	prometheusLedgerCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "created_records",
			Help:      "Number of non-coinbase creation records offered to the store",
		},
	)
	prometheusLedgerSpent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "spent_outpoints",
			Help:      "Number of spent outpoints offered to the store",
		},
	)
	prometheusLedgerCoinbaseCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "coinbase_records",
			Help:      "Number of coinbase creation records offered to the store",
		},
	)
	prometheusLedgerPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "utxottl",
			Subsystem: "ledger",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each per-block phase",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		},
		[]string{
			"phase", // extract, insert, update, coinbase
		},
	)
}
