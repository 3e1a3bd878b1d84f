package sql

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLedgerInsert        prometheus.Counter
	prometheusLedgerInsertRecords prometheus.Counter
	prometheusLedgerUpdate        prometheus.Counter
	prometheusLedgerUpdateRecords prometheus.Counter
	prometheusLedgerGet           prometheus.Counter
	prometheusLedgerErrors        *prometheus.CounterVec

	// only init the metrics once
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusLedgerInsert = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_insert",
			Help:      "Number of insert batches done to sql",
		},
	)
	prometheusLedgerInsertRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_insert_records",
			Help:      "Number of records offered to sql inserts, including ignored duplicates",
		},
	)
	prometheusLedgerUpdate = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_update",
			Help:      "Number of spend height update batches done to sql",
		},
	)
	prometheusLedgerUpdateRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_update_records",
			Help:      "Number of records whose spend height was set",
		},
	)
	prometheusLedgerGet = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_get",
			Help:      "Number of record get calls done to sql",
		},
	)
	prometheusLedgerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utxottl",
			Name:      "sql_ledger_errors",
			Help:      "Number of sql ledger errors",
		},
		[]string{
			"function", // function raising the error
			"error",    // error returned
		},
	)
}
