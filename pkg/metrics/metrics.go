// Package metrics holds the prometheus collectors for console traffic and
// convergence runs. A CLI run is short-lived, so the registry is exported to a
// node_exporter textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every racctl collector.
var Registry = prometheus.NewRegistry()

var (
	// CommandsTotal counts racadm commands by verb and result (ok/error).
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racctl_commands_total",
			Help: "Total number of racadm commands sent to the console.",
		},
		[]string{"verb", "result"},
	)

	// CommandDuration records round-trip latency per verb.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "racctl_command_duration_seconds",
			Help:    "Latency of racadm commands, from write to prompt.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	// ApplyAttempts counts network apply attempts by result (ok/error).
	ApplyAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racctl_apply_attempts_total",
			Help: "Network addressing apply attempts, including retries.",
		},
		[]string{"result"},
	)

	// TargetTransitions counts target lifecycle transitions by destination state.
	TargetTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racctl_target_transitions_total",
			Help: "Convergence target state transitions.",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(CommandsTotal)
	Registry.MustRegister(CommandDuration)
	Registry.MustRegister(ApplyAttempts)
	Registry.MustRegister(TargetTransitions)
}

// ObserveCommand records one command round trip.
func ObserveCommand(verb string, elapsed time.Duration, err error) {
	CommandsTotal.WithLabelValues(verb, result(err == nil)).Inc()
	CommandDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// ObserveApply records one network apply attempt.
func ObserveApply(ok bool) {
	ApplyAttempts.WithLabelValues(result(ok)).Inc()
}

// ObserveTransition records a target entering state.
func ObserveTransition(state string) {
	TargetTransitions.WithLabelValues(state).Inc()
}

// WriteTextfile writes the registry in the text exposition format, atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
