package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Bank transaction reconciliation results by outcome",
	}, []string{"outcome"})

	GatewayOrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_orders_created_total",
		Help: "Signed order-creation requests accepted by the wallet gateway",
	})

	CallbackVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_verdicts_total",
		Help: "Gateway callback verification verdicts",
	}, []string{"verdict"})
)
