package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/yiannist/clusterfit/internal/cluster"
)

func TestStaticCollector_FromOverlay(t *testing.T) {
	overlay := map[string]cluster.DynUtil{
		"inst0": {CPU: 0.5, Mem: 1024},
	}

	collector := NewStaticCollectorFromOverlay(overlay)

	if err := collector.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	if collector.BackendType() != "static" {
		t.Errorf("expected backend type 'static', got %q", collector.BackendType())
	}

	result, err := collector.Collect(context.Background(), CollectOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(result) != 1 || result["inst0"].CPU != 0.5 {
		t.Errorf("expected inst0's overlay to survive unchanged, got %+v", result)
	}
}

func TestStaticCollector_FromFile(t *testing.T) {
	content := `{"inst0": {"CPU": 0.5, "Mem": 1024, "Disk": 0, "Net": 0}}`

	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	collector := NewStaticCollector(path)

	if err := collector.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	result, err := collector.Collect(context.Background(), CollectOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 instance, got %d", len(result))
	}
}

func TestStaticCollector_FileNotFound(t *testing.T) {
	collector := NewStaticCollector("/nonexistent/file.json")

	if err := collector.Ping(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStaticCollector_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	collector := NewStaticCollector(path)
	_, err := collector.Collect(context.Background(), CollectOptions{})
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestStaticCollector_EmptyOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	collector := NewStaticCollector(path)
	_, err := collector.Collect(context.Background(), CollectOptions{})
	if err == nil {
		t.Error("expected error for empty overlay")
	}
}
