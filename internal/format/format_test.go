package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/container"
	"github.com/yiannist/clusterfit/internal/move"
)

func sampleCluster() *cluster.ClusterData {
	cd := cluster.New()
	nodes := container.New[*cluster.Node]()
	n0 := cluster.NewNode("node0.example.com", 16384, 512000, 8, 4, 512000, 512, 0)
	n0.SetIdx(0)
	n0 = n0.SetAlias("node0")
	n1 := cluster.NewNode("node1.example.com", 16384, 512000, 8, 4, 512000, 512, 0)
	n1.SetIdx(1)
	n1 = n1.SetAlias("node1")
	nodes.Add(n0)
	nodes.Add(n1)
	cd.Nodes = nodes

	instances := container.New[*cluster.Instance]()
	inst := cluster.NewInstance("inst0.example.com", cluster.ISpec{RSpec: cluster.RSpec{CPU: 1, Mem: 2048, Disk: 10240}}, cluster.DTRbd, 0, cluster.NoNode, cluster.StatusRunning)
	inst.SetIdx(0)
	inst = inst.SetAlias("inst0")
	instances.Add(inst)
	cd.Instances = instances
	return cd
}

func TestParseFields_ExtendsOrReplaces(t *testing.T) {
	defaults := []NodeField{FieldName, FieldGroup}
	if got := ParseFields("", defaults); len(got) != 2 {
		t.Fatalf("expected defaults unchanged, got %v", got)
	}
	if got := ParseFields("+tags", defaults); len(got) != 3 || got[2] != FieldTags {
		t.Fatalf("expected defaults extended with tags, got %v", got)
	}
	if got := ParseFields("tags", defaults); len(got) != 1 || got[0] != FieldTags {
		t.Fatalf("expected field list replaced outright, got %v", got)
	}
}

func TestTableFormatter_Nodes(t *testing.T) {
	cd := sampleCluster()
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Nodes(&buf, cd, DefaultNodeFields, nil); err != nil {
		t.Fatalf("Nodes: %v", err)
	}
	if !strings.Contains(buf.String(), "node0") {
		t.Fatalf("expected node0 in table output, got %q", buf.String())
	}
}

func TestTableFormatter_Nodes_RendersCostColumn(t *testing.T) {
	cd := sampleCluster()
	costs := map[int]cloudnode.NodeCost{0: {InstanceType: "m5.xlarge", MonthlyCostUSD: 140.14}}
	var buf bytes.Buffer
	f := &TableFormatter{}
	if err := f.Nodes(&buf, cd, DefaultNodeFields, costs); err != nil {
		t.Fatalf("Nodes: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "$/mo") {
		t.Fatalf("expected a $/mo header, got %q", out)
	}
	if !strings.Contains(out, "140.14") {
		t.Fatalf("expected node0's resolved cost, got %q", out)
	}
	if !strings.Contains(out, "-") {
		t.Fatalf("expected node1's unresolved cost cell to render as '-', got %q", out)
	}
}

func TestJSONFormatter_Nodes_OmitsCostWhenUnresolved(t *testing.T) {
	cd := sampleCluster()
	costs := map[int]cloudnode.NodeCost{0: {InstanceType: "m5.xlarge", MonthlyCostUSD: 140.14}}
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.Nodes(&buf, cd, DefaultNodeFields, costs); err != nil {
		t.Fatalf("Nodes: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\"monthly_cost_usd\": 140.14") {
		t.Fatalf("expected node0's cost in JSON output, got %q", out)
	}
	if strings.Count(out, "monthly_cost_usd") != 1 {
		t.Fatalf("expected node1's unresolved cost to be omitted, got %q", out)
	}
}

func TestJSONFormatter_Placements(t *testing.T) {
	cd := sampleCluster()
	placements := []balance.Placement{
		{InstanceIdx: 0, Move: move.Move{Variant: move.FailoverToAny, Target: 1}, OldPrimary: 0, NewPrimary: 1, NewSecondary: cluster.NoNode, Score: 1.5},
	}
	var buf bytes.Buffer
	f := &JSONFormatter{}
	if err := f.Placements(&buf, cd, placements); err != nil {
		t.Fatalf("Placements: %v", err)
	}
	if !strings.Contains(buf.String(), "\"instance\": \"inst0\"") {
		t.Fatalf("expected instance name in JSON output, got %q", buf.String())
	}
}

func TestScriptFormatter_EmitsStepSeparatorsPerJobset(t *testing.T) {
	cd := sampleCluster()
	placements := []balance.Placement{
		{InstanceIdx: 0, Move: move.Move{Variant: move.FailoverToAny, Target: 1}, NodesTouched: []int{0, 1}},
	}
	var buf bytes.Buffer
	f := &ScriptFormatter{}
	if err := f.Placements(&buf, cd, placements); err != nil {
		t.Fatalf("Placements: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "echo step 1") {
		t.Fatalf("expected a step separator, got %q", out)
	}
	if !strings.Contains(out, "gnt-instance failover -n node1 inst0") {
		t.Fatalf("expected a failover command, got %q", out)
	}
}

func TestScriptFormatter_RejectsNodeTables(t *testing.T) {
	f := &ScriptFormatter{}
	if err := f.Nodes(&bytes.Buffer{}, sampleCluster(), DefaultNodeFields, nil); err == nil {
		t.Fatal("expected script formatter to reject node tables")
	}
}
