package consensus

import (
	metrics "github.com/rcrowley/go-metrics"

	"graphbft/libs/metric"
)

func newGraphMetric() *graphMetric {
	r := metrics.NewRegistry()
	return &graphMetric{
		registry:       r,
		Submitted:      metrics.NewRegisteredCounter("submitted", r),
		Duplicates:     metrics.NewRegisteredCounter("duplicates", r),
		Invalid:        metrics.NewRegisteredCounter("invalid", r),
		Saved:          metrics.NewRegisteredCounter("saved", r),
		Copies:         metrics.NewRegisteredCounter("copies", r),
		Published:      metrics.NewRegisteredCounter("published", r),
		Agreements:     metrics.NewRegisteredCounter("agreements", r),
		Delivered:      metrics.NewRegisteredCounter("delivered", r),
		Committed:      metrics.NewRegisteredCounter("committed", r),
		VerifyFailures: metrics.NewRegisteredCounter("verify_failures", r),
		Round:          metrics.NewRegisteredGauge("round", r),
		Sessions:       metrics.NewRegisteredGauge("sessions", r),
	}
}

// graphMetric counts what the pipeline did since start.
type graphMetric struct {
	registry metrics.Registry

	Submitted      metrics.Counter
	Duplicates     metrics.Counter
	Invalid        metrics.Counter
	Saved          metrics.Counter
	Copies         metrics.Counter // local copies of foreign graphs
	Published      metrics.Counter
	Agreements     metrics.Counter // sessions started
	Delivered      metrics.Counter // delivered entries handled
	Committed      metrics.Counter // blocks appended to the hash chain
	VerifyFailures metrics.Counter

	Round    metrics.Gauge
	Sessions metrics.Gauge
}

func (gm *graphMetric) JSONString() string {
	return metric.RegistryJSON(gm.registry)
}
