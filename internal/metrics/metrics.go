package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Dispatches           *prometheus.CounterVec
	GatewayErrors        *prometheus.CounterVec
	ConversationsEvicted prometheus.Counter
	SessionResets        prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mike",
				Name:      "dispatches_total",
				Help:      "Total user messages dispatched, by classified intent",
			}, []string{"intent"}),
			GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mike",
				Name:      "gateway_errors_total",
				Help:      "Total assistant gateway failures, by call kind",
			}, []string{"kind"}),
			ConversationsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mike",
				Name:      "conversations_evicted_total",
				Help:      "Total conversations dropped by the retention cap",
			}),
			SessionResets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mike",
				Name:      "assistant_session_resets_total",
				Help:      "Total assistant chat sessions rebuilt with a new instruction",
			}),
		}
		prometheus.MustRegister(global.Dispatches, global.GatewayErrors, global.ConversationsEvicted, global.SessionResets)
	})
	return global
}
