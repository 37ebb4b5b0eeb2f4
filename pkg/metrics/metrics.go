package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	vcenterBridge = "vcenter_bridge"

	// Fetch metrics
	fetchDurationSeconds = "fetch_duration_seconds"
	fetchedVmsTotal      = "fetched_vms_total"

	// Reconcile metrics
	reconcileOpsTotal = "reconcile_operations_total"

	// Labels
	serverLabel    = "server"
	outcomeLabel   = "outcome"
	operationLabel = "operation"
)

var fetchDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: vcenterBridge,
		Name:      fetchDurationSeconds,
		Help:      "duration of full inventory fetches per vCenter server",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	},
	[]string{serverLabel, outcomeLabel},
)

var fetchedVmsMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: vcenterBridge,
		Name:      fetchedVmsTotal,
		Help:      "number of virtual machines returned by the last fetch per server",
	},
	[]string{serverLabel},
)

var reconcileOpsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: vcenterBridge,
		Name:      reconcileOpsTotal,
		Help:      "number of reconcile record operations by outcome",
	},
	[]string{operationLabel, outcomeLabel},
)

func ObserveFetchDuration(server, outcome string, d time.Duration) {
	fetchDurationMetric.With(prometheus.Labels{
		serverLabel:  server,
		outcomeLabel: outcome,
	}).Observe(d.Seconds())
}

func SetFetchedVms(server string, count int) {
	fetchedVmsMetric.With(prometheus.Labels{
		serverLabel: server,
	}).Set(float64(count))
}

func IncreaseReconcileOps(operation, outcome string, delta int) {
	reconcileOpsMetric.With(prometheus.Labels{
		operationLabel: operation,
		outcomeLabel:   outcome,
	}).Add(float64(delta))
}

func init() {
	prometheus.MustRegister(fetchDurationMetric)
	prometheus.MustRegister(fetchedVmsMetric)
	prometheus.MustRegister(reconcileOpsMetric)
}
