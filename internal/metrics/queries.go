package metrics

import "fmt"

// PromQL query templates for collecting per-instance dynamic utilisation.
//
// These assume a Ganeti monitoring exporter (or a relabeled node/VM
// exporter) surfacing series labeled by "instance" with the virtual
// machine's name, the way kube-state-metrics labels by (namespace, pod) —
// same query shape, different label.

// queryCPUPercentile returns PromQL for CPU usage at a given percentile
// over a time range. Returns CPU in cores per instance.
func queryCPUPercentile(percentile float64, window, step string) string {
	return fmt.Sprintf(`quantile_over_time(%g,
  sum by (instance) (
    rate(ganeti_instance_cpu_seconds_total[5m])
  )[%s:%s]
)`, percentile, window, step)
}

// queryMemoryPercentile returns PromQL for memory usage at a given
// percentile. Returns memory in MiB per instance.
func queryMemoryPercentile(percentile float64, window, step string) string {
	return fmt.Sprintf(`quantile_over_time(%g,
  sum by (instance) (
    ganeti_instance_memory_used_bytes / 1048576
  )[%s:%s]
)`, percentile, window, step)
}

// queryDiskIOPercentile returns PromQL for disk I/O rate at a given
// percentile. Returns a unitless load figure, matching the dynamic-utilisation
// overlay's disk-io component (§3's DynUtil).
func queryDiskIOPercentile(percentile float64, window, step string) string {
	return fmt.Sprintf(`quantile_over_time(%g,
  sum by (instance) (
    rate(ganeti_instance_disk_io_time_seconds_total[5m])
  )[%s:%s]
)`, percentile, window, step)
}

// queryNetPercentile returns PromQL for network throughput at a given
// percentile, summed across both directions.
func queryNetPercentile(percentile float64, window, step string) string {
	return fmt.Sprintf(`quantile_over_time(%g,
  sum by (instance) (
    rate(ganeti_instance_network_receive_bytes_total[5m])
    + rate(ganeti_instance_network_transmit_bytes_total[5m])
  )[%s:%s]
)`, percentile, window, step)
}
