package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// formsOpen — количество открытых форм.
	formsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ag_forms_open",
		Help: "Количество открытых форм консоли",
	})

	// formsClosedTotal — закрытые формы по причине (submitted, discarded, expired).
	formsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_forms_closed_total",
			Help: "Количество закрытых форм консоли по причине",
		},
		[]string{"reason"},
	)
)
