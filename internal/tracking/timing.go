package tracking

import (
	"context"

	servertiming "github.com/mitchellh/go-server-timing"
)

type timingMetric struct {
	metric *servertiming.Metric
}

func (m timingMetric) Stop() {
	if m.metric != nil {
		m.metric.Stop()
	}
}

// startTiming starts a Server-Timing metric when ctx carries a timing header.
func startTiming(ctx context.Context, name, desc string) timingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return timingMetric{}
	}
	return timingMetric{metric: timing.NewMetric(name).WithDesc(desc).Start()}
}
