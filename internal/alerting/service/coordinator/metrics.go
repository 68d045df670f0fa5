package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vigilops/vigil/internal/alerting/service/notify"
)

// Metrics exposes the coordinator's gauges and counters. Notification
// delivery counters are read straight from the dispatcher so the two
// surfaces can never drift apart.
type Metrics struct {
	RulesTotal     prometheus.Gauge
	FiringAlerts   prometheus.Gauge
	PendingAlerts  prometheus.Gauge
	AlertsFired    prometheus.Counter
	AlertsResolved prometheus.Counter
	Escalations    prometheus.Counter
	PurgedAlerts   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, d *notify.Dispatcher) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		RulesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_alert_rules",
			Help: "Number of configured alert rules.",
		}),
		FiringAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_alerts_firing",
			Help: "Number of currently firing alerts.",
		}),
		PendingAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_alerts_pending",
			Help: "Number of rules whose condition is true but not yet duration-satisfied.",
		}),
		AlertsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_fired_total",
			Help: "Total alerts that transitioned to firing.",
		}),
		AlertsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_resolved_total",
			Help: "Total alerts that resolved.",
		}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_escalations_total",
			Help: "Total escalation notifications emitted.",
		}),
		PurgedAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alerts_purged_total",
			Help: "Total resolved alerts dropped by the retention sweep.",
		}),
	}

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "vigil_notifications_sent_total",
		Help: "Total notifications delivered successfully.",
	}, func() float64 { return float64(d.Sent()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "vigil_notifications_failed_total",
		Help: "Total notifications that failed delivery.",
	}, func() float64 { return float64(d.Failed()) })

	return m
}
