package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_broadcasts_total",
		Help: "Transfer broadcast attempts by outcome.",
	}, []string{"outcome"})

	metricWithdrawalsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_withdrawals_failed_total",
		Help: "Withdrawals that reached the failed state.",
	})

	metricDepositsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_deposits_credited_total",
		Help: "Incoming deposits credited to an account.",
	})

	metricReconcileCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reconcile_corrections_total",
		Help: "Reconciliation runs that changed a stored balance.",
	})
)
