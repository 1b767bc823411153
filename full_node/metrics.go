package full_node

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "btc_ledger"

// metrics are owned by one full node so independent nodes never share counters.
type metrics struct {
	blocksAdmitted *prometheus.CounterVec
	blocksPruned   prometheus.Counter
	maxHeight      prometheus.Gauge
	pendingTxs     prometheus.Gauge
	retainedBlocks prometheus.Gauge
}

// newMetrics creates the collectors and registers them on reg when it isn't nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		blocksAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_admitted_total",
			Help:      "Submitted blocks by admission outcome",
		}, []string{"outcome"}),
		blocksPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_pruned_total",
			Help:      "Blocks dropped for falling out of the cut off window",
		}),
		maxHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "max_height",
			Help:      "Height of the tallest retained block",
		}),
		pendingTxs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_txs",
			Help:      "Transactions waiting in the pool",
		}),
		retainedBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "retained_blocks",
			Help:      "Blocks currently kept in memory",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.blocksAdmitted, m.blocksPruned, m.maxHeight, m.pendingTxs, m.retainedBlocks)
	}
	return m
}
