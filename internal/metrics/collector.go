package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/yiannist/clusterfit/internal/cluster"
)

var (
	ErrPrometheusUnreachable = errors.New("prometheus endpoint unreachable")
	ErrNoMetricsFound        = errors.New("no instance metrics found for the specified criteria")
)

// Collector abstracts the collection of the per-instance dynamic-utilisation
// overlay (§4.3 step 1's "um"), sourced from a monitoring backend external
// to the placement engine itself.
type Collector interface {
	// Collect gathers a DynUtil per instance name, keyed exactly the way
	// loader.MergeOptions.DynUtil expects.
	Collect(ctx context.Context, opts CollectOptions) (map[string]cluster.DynUtil, error)

	// Ping validates connectivity to the metrics backend.
	Ping(ctx context.Context) error

	// BackendType returns the detected backend type.
	BackendType() string
}

// CollectOptions configures metrics collection.
type CollectOptions struct {
	Window       TimeWindow
	Percentile   float64       // Which percentile to use as the overlay value (default 0.95)
	StepInterval time.Duration // PromQL step interval
}

// TimeWindow is the historical range a collector samples over.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Duration reports the span covered by the window.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
