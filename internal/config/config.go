// Package config is the Viper-backed configuration tree for clusterfit,
// copied in shape from the teacher's internal/config/config.go: the same
// nested-struct-plus-yaml-tag layout, with a Default() and a Validate()
// pair, but its fields are balancer/allocator/group thresholds and data
// source settings instead of AWS/Prometheus simulation parameters.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration for clusterfit.
type Config struct {
	Cluster    ClusterConfig    `yaml:"cluster"`
	Balancer   BalancerConfig   `yaml:"balancer"`
	Allocator  AllocatorConfig  `yaml:"allocator"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Cloud      CloudConfig      `yaml:"cloud"`
	Output     OutputConfig     `yaml:"output"`
}

// ClusterConfig names which node group, if any, an operation is scoped to.
type ClusterConfig struct {
	Name  string `yaml:"name"`
	Group string `yaml:"group"`
}

// BalancerConfig mirrors balance.Options/move.Options (§4.6).
type BalancerConfig struct {
	MinScore            float64 `yaml:"min_score"`
	MaxLength           int     `yaml:"max_length"`
	MinGain             float64 `yaml:"min_gain"`
	MinGainLimit        float64 `yaml:"min_gain_limit"`
	NoDiskMoves         bool    `yaml:"no_disk_moves"`
	NoInstanceMoves     bool    `yaml:"no_instance_moves"`
	EvacMode            bool    `yaml:"evac_mode"`
	RestrictedMigration bool    `yaml:"restricted_migration"`
}

// AllocatorConfig mirrors the tiered allocator's instance shape (§4.7).
type AllocatorConfig struct {
	VCPUs        int    `yaml:"vcpus"`
	MemoryMiB    int64  `yaml:"memory_mib"`
	DiskMiB      int64  `yaml:"disk_mib"`
	DiskTemplate string `yaml:"disk_template"`
}

// MonitoringConfig points at the Prometheus-compatible backend
// internal/metrics queries for the dynamic-utilisation overlay.
type MonitoringConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	Window     time.Duration `yaml:"window"`
	Step       time.Duration `yaml:"step"`
	Percentile float64       `yaml:"percentile"`
}

// KubernetesConfig configures internal/kube's endpoint discovery.
type KubernetesConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Kubeconfig         string `yaml:"kubeconfig"`
	Context            string `yaml:"context"`
	DiscoveryNamespace string `yaml:"discovery_namespace"` // empty = all namespaces
}

// CloudConfig configures internal/cloudnode's EC2 capacity/price lookups.
type CloudConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Region     string `yaml:"region"`
	EnrichCost bool   `yaml:"enrich_cost"`
	CacheDir   string `yaml:"cache_dir"`
}

// OutputConfig selects the Formatter and how many tiered-allocation steps
// to show.
type OutputConfig struct {
	Format string `yaml:"format"`
	Fields string `yaml:"fields"`
	TopN   int    `yaml:"top_n"`
}

// Default returns a Config with sensible defaults, grounded on the
// teacher's Default() (internal/config/config.go).
func Default() Config {
	return Config{
		Balancer: BalancerConfig{
			MinScore:     1e-9,
			MaxLength:    -1,
			MinGain:      1e-2,
			MinGainLimit: 1e-1,
		},
		Allocator: AllocatorConfig{
			DiskTemplate: "drbd",
		},
		Monitoring: MonitoringConfig{
			Timeout:    60 * time.Second,
			Window:     7 * 24 * time.Hour,
			Step:       5 * time.Minute,
			Percentile: 0.95,
		},
		Cloud: CloudConfig{
			Region: detectRegion(),
		},
		Output: OutputConfig{
			Format: "table",
			TopN:   5,
		},
	}
}

// Validate checks the config for consistency, grounded on the teacher's
// Validate() (internal/config/config.go): the same build-up-a-single-error
// style, one field at a time.
func (c *Config) Validate() error {
	if c.Monitoring.Percentile < 0 || c.Monitoring.Percentile > 1.0 {
		return fmt.Errorf("monitoring percentile must be between 0 and 1.0, got %v", c.Monitoring.Percentile)
	}
	if c.Monitoring.Window < 0 {
		return fmt.Errorf("monitoring window must be non-negative, got %v", c.Monitoring.Window)
	}
	if c.Balancer.MinGain < 0 {
		return fmt.Errorf("balancer min_gain must be non-negative, got %v", c.Balancer.MinGain)
	}
	if c.Balancer.MinGainLimit < 0 {
		return fmt.Errorf("balancer min_gain_limit must be non-negative, got %v", c.Balancer.MinGainLimit)
	}
	validFormats := map[string]bool{"table": true, "json": true, "script": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output format must be table, json, or script, got %q", c.Output.Format)
	}
	if c.Output.TopN <= 0 {
		c.Output.TopN = 5
	}
	if c.Cloud.EnrichCost && c.Cloud.Region == "" {
		return fmt.Errorf("cloud.enrich_cost requires cloud.region to be set")
	}
	return nil
}

// detectRegion checks environment variables for the AWS region.
func detectRegion() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	if r := os.Getenv("AWS_DEFAULT_REGION"); r != "" {
		return r
	}
	return "us-east-1"
}
