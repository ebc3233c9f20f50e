package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry: собственный реестр, чтобы тесты не делили DefaultRegisterer.
var Registry = prometheus.NewRegistry()

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_ticks_total", Help: "Scheduler ticks by outcome"},
		[]string{"outcome"}, // evaluated | unavailable
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_fetch_failures_total", Help: "Price fetch failures"},
		[]string{"asset", "reason"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_signals_total", Help: "Signal events emitted"},
		[]string{"kind"},
	)
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "divergence_commands_total", Help: "Inbound commands by name and result"},
		[]string{"command", "result"},
	)
	NotifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "divergence_notify_failures_total", Help: "Failed notification deliveries"},
	)
	GapPct = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "divergence_gap_pct", Help: "Last evaluated gap, percent"},
	)
	SignalState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "divergence_signal_state", Help: "0=flat 1=s1 2=s2"},
	)
)

func init() {
	Registry.MustRegister(
		TicksTotal,
		FetchFailuresTotal,
		SignalsTotal,
		CommandsTotal,
		NotifyFailuresTotal,
		GapPct,
		SignalState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
