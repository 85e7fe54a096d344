package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters, registered with the default registry
var (
	// EventsProcessed counts normalized events per source
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logguardd_events_processed_total",
		Help: "Total number of log lines normalized into events",
	}, []string{"source"})

	// Incidents counts detector findings routed through the policy
	Incidents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logguardd_incidents_total",
		Help: "Total number of incidents handled",
	}, []string{"attack_type", "severity"})

	DetectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logguardd_detector_failures_total",
		Help: "Total number of detector evaluations that failed or panicked",
	}, []string{"detector"})

	// AlertsSent counts alerts handed to an alert sink that accepted them
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logguardd_alerts_sent_total",
		Help: "Total number of alerts delivered",
	}, []string{"sink"})

	IPsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logguardd_ips_blocked_total",
		Help: "Total number of addresses blocked by a response sink",
	}, []string{"sink"})

	// TrackedIPs is the size of the brute-force window table
	TrackedIPs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logguardd_bruteforce_tracked_ips",
		Help: "Number of addresses currently held in the brute-force window",
	})
)
