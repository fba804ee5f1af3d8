package sampler

import "github.com/prometheus/client_golang/prometheus"

var (
	candidateOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qsample",
			Subsystem: "sampler",
			Name:      "candidates_total",
			Help:      "Candidate spans by outcome.",
		},
		[]string{"outcome"},
	)
	updateOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qsample",
			Subsystem: "sampler",
			Name:      "updates_total",
			Help:      "Span model updates by direction.",
		},
		[]string{"direction"},
	)
	drawOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qsample",
			Subsystem: "sampler",
			Name:      "draws_total",
			Help:      "Categorical draws by role.",
		},
		[]string{"role"},
	)
)

const (
	outcomeProposed  = "proposed"
	outcomeDuplicate = "duplicate"
	outcomeAccepted  = "accepted"
	outcomeRejected  = "rejected"
	outcomeReplaced  = "replaced"
	outcomeRemoved   = "removed"
)

func init() {
	prometheus.MustRegister(candidateOps)
	prometheus.MustRegister(updateOps)
	prometheus.MustRegister(drawOps)
}

// Collectors returns the sampler's metric collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{candidateOps, updateOps, drawOps}
}
