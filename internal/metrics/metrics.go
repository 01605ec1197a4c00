// Package metrics exposes the Prometheus collectors shared by both services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_readings_ingested_total",
		Help: "Sensor readings accepted from the broker.",
	}, []string{"tower", "quantity"})

	LatestReading = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hydro_reading_value",
		Help: "Latest value per tower and quantity.",
	}, []string{"tower", "quantity"})

	IssuesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_issues_fired_total",
		Help: "Issues dispatched after passing the alert gate.",
	}, []string{"tower", "type"})

	IssuesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_issues_suppressed_total",
		Help: "Issues suppressed by the alert cooldown.",
	}, []string{"tower", "type"})

	DosesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_doses_executed_total",
		Help: "Dose sequences that reached actuation.",
	}, []string{"tower", "solution"})

	DoseVolumeML = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_dose_volume_ml_total",
		Help: "Cumulative dosed volume in mL.",
	}, []string{"tower", "solution"})

	DosesDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hydro_doses_denied_total",
		Help: "Dose requests denied by the safety gate.",
	}, []string{"tower", "solution", "reason"})

	DoseRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hydro_dose_record_failures_total",
		Help: "Doses executed whose history record could not be persisted.",
	})
)
