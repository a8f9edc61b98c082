package cloudnode

import (
	"context"
	"testing"

	"github.com/yiannist/clusterfit/internal/cluster"
)

type fakeProvider struct {
	types map[string]InstanceType
}

func (f *fakeProvider) GetInstanceTypes(ctx context.Context, filter InstanceFilter) ([]InstanceType, error) {
	var out []InstanceType
	for _, name := range filter.ExactTypes {
		if it, ok := f.types[name]; ok {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoInstanceTypes
	}
	return out, nil
}

func (f *fakeProvider) GetSpotPrices(ctx context.Context, instanceTypes []string) (map[string]float64, error) {
	return nil, nil
}

func (f *fakeProvider) EnrichWithPricing(ctx context.Context, types []InstanceType) (int, error) {
	priced := 0
	for i := range types {
		if it, ok := f.types[types[i].InstanceType]; ok {
			types[i].OnDemandPricePerHour = it.OnDemandPricePerHour
			priced++
		}
	}
	return priced, nil
}

func (f *fakeProvider) Region() string { return "us-east-1" }

func mkTaggedNode(idx int, tags ...string) *cluster.Node {
	n := cluster.NewNode("node", 16384, 512000, 8, 4, 512000, 512, 0)
	n.SetIdx(idx)
	n.Tags = map[string]struct{}{}
	for _, t := range tags {
		n.Tags[t] = struct{}{}
	}
	return n
}

func TestInstanceTypeTag(t *testing.T) {
	typ, ok := InstanceTypeTag(map[string]struct{}{"env:prod": {}, "ec2-type:m5.xlarge": {}})
	if !ok || typ != "m5.xlarge" {
		t.Fatalf("got %q, %v", typ, ok)
	}
	if _, ok := InstanceTypeTag(map[string]struct{}{"env:prod": {}}); ok {
		t.Fatal("expected no instance type tag")
	}
}

func TestNodeCosts_ResolvesTaggedNodes(t *testing.T) {
	provider := &fakeProvider{types: map[string]InstanceType{
		"m5.xlarge": {InstanceType: "m5.xlarge", VCPUs: 4, MemoryMiB: 16384, OnDemandPricePerHour: 0.192},
	}}

	n1 := mkTaggedNode(0, "ec2-type:m5.xlarge")
	n2 := mkTaggedNode(1, "ec2-type:m5.xlarge")
	n3 := mkTaggedNode(2) // untagged, bare-metal node

	costs, err := NodeCosts(context.Background(), provider, []*cluster.Node{n1, n2, n3})
	if err != nil {
		t.Fatalf("NodeCosts: %v", err)
	}
	if len(costs) != 2 {
		t.Fatalf("expected 2 resolved nodes, got %d", len(costs))
	}
	for _, idx := range []int{0, 1} {
		nc, ok := costs[idx]
		if !ok {
			t.Fatalf("node %d missing from result", idx)
		}
		if nc.VCPUs != 4 || nc.MemoryMiB != 16384 {
			t.Fatalf("unexpected capacity for node %d: %+v", idx, nc)
		}
		want := 0.192 * 730.5
		if nc.MonthlyCostUSD != want {
			t.Fatalf("MonthlyCostUSD = %v, want %v", nc.MonthlyCostUSD, want)
		}
	}
	if _, ok := costs[2]; ok {
		t.Fatal("untagged node should not be present in result")
	}
}

func TestNodeCosts_NoTaggedNodes(t *testing.T) {
	provider := &fakeProvider{types: map[string]InstanceType{}}
	n := mkTaggedNode(0)

	costs, err := NodeCosts(context.Background(), provider, []*cluster.Node{n})
	if err != nil {
		t.Fatalf("NodeCosts: %v", err)
	}
	if costs != nil {
		t.Fatalf("expected nil result with no tagged nodes, got %+v", costs)
	}
}
