package metric

import (
	jsoniter "github.com/json-iterator/go"
	metrics "github.com/rcrowley/go-metrics"
)

// MetricItem is the metric view of one module.
type MetricItem interface {
	JSONString() string
}

// RegistryJSON renders the counters and gauges of r as a JSON object keyed
// by metric name.
func RegistryJSON(r metrics.Registry) string {
	values := make(map[string]int64)
	r.Each(func(name string, m interface{}) {
		switch m := m.(type) {
		case metrics.Counter:
			values[name] = m.Count()
		case metrics.Gauge:
			values[name] = m.Value()
		}
	})
	s, err := jsoniter.MarshalToString(values)
	if err != nil {
		return "{}"
	}
	return s
}
