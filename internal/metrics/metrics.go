// Package metrics содержит счётчики Prometheus для операций движка подписок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentsCreated — количество созданных платёжных намерений по типу плана.
	PaymentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipaccess_payments_created_total",
			Help: "Total number of payment intents created",
		},
		[]string{"plan_kind"},
	)

	// ReconcileResults — исходы сверок платёжных уведомлений.
	ReconcileResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vipaccess_reconcile_results_total",
			Help: "Total number of reconciliation outcomes by result kind",
		},
		[]string{"result"},
	)

	// SweepStaleIntents — количество удалённых просроченных намерений.
	SweepStaleIntents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vipaccess_sweep_stale_intents_total",
			Help: "Total number of stale pending intents removed by the sweep",
		},
	)

	// SweepExpelled — количество пользователей, исключённых из группы по истечении плана.
	SweepExpelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vipaccess_sweep_expelled_total",
			Help: "Total number of identities expelled by the sweep",
		},
	)

	// SweepErrors — количество ошибок при обработке отдельных пользователей в ходе свипа.
	SweepErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vipaccess_sweep_errors_total",
			Help: "Total number of per-identity errors during the sweep",
		},
	)
)
