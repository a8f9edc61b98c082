package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"

	"github.com/yiannist/clusterfit/internal/cluster"
)

// PrometheusCollector collects dynamic-utilisation metrics from Prometheus,
// Thanos, or Cortex.
type PrometheusCollector struct {
	api      promv1.API
	endpoint string
	backend  string
	timeout  time.Duration
}

// PrometheusOption configures the Prometheus collector.
type PrometheusOption func(*PrometheusCollector)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) PrometheusOption {
	return func(c *PrometheusCollector) { c.timeout = d }
}

// NewPrometheusCollector creates a collector connected to the given endpoint.
func NewPrometheusCollector(endpoint string, opts ...PrometheusOption) (*PrometheusCollector, error) {
	client, err := promapi.NewClient(promapi.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}

	c := &PrometheusCollector{
		api:      promv1.NewAPI(client),
		endpoint: endpoint,
		backend:  "prometheus",
		timeout:  60 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Ping checks connectivity and detects the backend type.
func (c *PrometheusCollector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, _, err := c.api.Query(ctx, "up", time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrometheusUnreachable, err)
	}

	c.detectBackend(ctx)
	return nil
}

// BackendType returns the detected backend type.
func (c *PrometheusCollector) BackendType() string {
	return c.backend
}

// detectBackend tries to identify Thanos or Cortex.
func (c *PrometheusCollector) detectBackend(ctx context.Context) {
	resp, err := http.Get(c.endpoint + "/api/v1/status/buildinfo")
	if err == nil {
		resp.Body.Close()
	}

	result, _, err := c.api.Query(ctx, "thanos_store_nodes_total", time.Now())
	if err == nil && result != nil && result.String() != "" {
		c.backend = "thanos"
		return
	}

	result, _, err = c.api.Query(ctx, "cortex_ingester_active_series", time.Now())
	if err == nil && result != nil && result.String() != "" {
		c.backend = "cortex"
	}
}

// Collect gathers the dynamic-utilisation overlay from Prometheus, one
// DynUtil per instance name.
func (c *PrometheusCollector) Collect(ctx context.Context, opts CollectOptions) (map[string]cluster.DynUtil, error) {
	windowStr := formatDuration(opts.Window.Duration())
	stepStr := formatDuration(opts.StepInterval)
	if stepStr == "" {
		stepStr = "5m"
	}

	pct := opts.Percentile
	if pct == 0 {
		pct = 0.95
	}

	type queryResult struct {
		name string
		data prommodel.Value
		err  error
	}

	queries := map[string]string{
		"cpu":  queryCPUPercentile(pct, windowStr, stepStr),
		"mem":  queryMemoryPercentile(pct, windowStr, stepStr),
		"disk": queryDiskIOPercentile(pct, windowStr, stepStr),
		"net":  queryNetPercentile(pct, windowStr, stepStr),
	}

	results := make(chan queryResult, len(queries))
	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	for name, q := range queries {
		go func(n, query string) {
			data, _, err := c.api.Query(queryCtx, query, opts.Window.End)
			results <- queryResult{name: n, data: data, err: err}
		}(name, q)
	}

	collected := make(map[string]prommodel.Value)
	var errs []string
	for i := 0; i < len(queries); i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.name, r.err))
			continue
		}
		collected[r.name] = r.data
	}

	return buildOverlay(collected, errs)
}

// buildOverlay assembles the per-instance DynUtil map from query results.
func buildOverlay(data map[string]prommodel.Value, queryErrors []string) (map[string]cluster.DynUtil, error) {
	cpu := extractVector(data["cpu"])
	mem := extractVector(data["mem"])
	disk := extractVector(data["disk"])
	net := extractVector(data["net"])

	allInstances := make(map[string]bool)
	for _, m := range []map[string]float64{cpu, mem, disk, net} {
		for k := range m {
			allInstances[k] = true
		}
	}

	if len(allInstances) == 0 {
		detail := ""
		if len(queryErrors) > 0 {
			detail = "; query errors: " + joinErrors(queryErrors)
		}
		return nil, fmt.Errorf("%w%s", ErrNoMetricsFound, detail)
	}

	overlay := make(map[string]cluster.DynUtil, len(allInstances))
	for name := range allInstances {
		overlay[name] = cluster.DynUtil{
			CPU:  cpu[name],
			Mem:  mem[name],
			Disk: disk[name],
			Net:  net[name],
		}
	}
	return overlay, nil
}

// extractVector converts a Prometheus Value to a map of instance name to
// value.
func extractVector(v prommodel.Value) map[string]float64 {
	result := make(map[string]float64)
	if v == nil {
		return result
	}

	vec, ok := v.(prommodel.Vector)
	if !ok {
		return result
	}

	for _, sample := range vec {
		name := string(sample.Metric["instance"])
		if name == "" {
			continue
		}
		result[name] = float64(sample.Value)
	}
	return result
}

func joinErrors(errs []string) string {
	out := errs[0]
	for _, e := range errs[1:] {
		out += ", " + e
	}
	return out
}

// formatDuration formats a time.Duration to a Prometheus-compatible duration
// string.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%dd", hours/24)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh", hours)
	}
	minutes := int(d.Minutes())
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
