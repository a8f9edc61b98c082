package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yiannist/clusterfit/internal/cluster"
)

// StaticCollector loads the dynamic-utilisation overlay from a JSON file
// mapping instance name to DynUtil. Used for testing, offline analysis,
// and CI pipelines where no live monitoring backend is reachable.
type StaticCollector struct {
	filePath string
	overlay  map[string]cluster.DynUtil
}

// NewStaticCollector creates a collector that reads from a JSON file.
func NewStaticCollector(filePath string) *StaticCollector {
	return &StaticCollector{filePath: filePath}
}

// NewStaticCollectorFromOverlay creates a collector from a pre-built
// overlay, bypassing the file entirely.
func NewStaticCollectorFromOverlay(overlay map[string]cluster.DynUtil) *StaticCollector {
	return &StaticCollector{overlay: overlay}
}

// Ping checks that the file exists.
func (s *StaticCollector) Ping(ctx context.Context) error {
	if s.overlay != nil {
		return nil
	}
	_, err := os.Stat(s.filePath)
	if err != nil {
		return fmt.Errorf("static metrics file: %w", err)
	}
	return nil
}

// BackendType returns "static".
func (s *StaticCollector) BackendType() string {
	return "static"
}

// Collect loads the overlay from the JSON file.
func (s *StaticCollector) Collect(ctx context.Context, opts CollectOptions) (map[string]cluster.DynUtil, error) {
	if s.overlay != nil {
		return s.overlay, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading static metrics file: %w", err)
	}

	var overlay map[string]cluster.DynUtil
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing static metrics file: %w", err)
	}

	if len(overlay) == 0 {
		return nil, ErrNoMetricsFound
	}

	return overlay, nil
}
