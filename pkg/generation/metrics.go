package generation

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus counters. Counters are usable
// unregistered, so tests can pass a nil registerer.
type Metrics struct {
	Generations prometheus.Counter
	Timeouts    prometheus.Counter
	OOMs        prometheus.Counter
	Truncations prometheus.Counter
}

// NewMetrics creates the engine counters and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_generations_total",
			Help: "Completed generation calls.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_generation_timeouts_total",
			Help: "Generation calls abandoned after exceeding the timeout.",
		}),
		OOMs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_generation_oom_total",
			Help: "Generation calls failed on accelerator memory exhaustion.",
		}),
		Truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_prompt_truncations_total",
			Help: "Prompts truncated to the input token budget.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Generations, m.Timeouts, m.OOMs, m.Truncations)
	}

	return m
}
