package cloudnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/yiannist/clusterfit/internal/cluster"
)

// InstanceTypeTagPrefix marks a node tag carrying the EC2 instance type
// backing that node ("ec2-type:m5.xlarge") — the convention cmd/ uses to
// decide which nodes NodeCosts should resolve hardware shape and pricing
// for, since a ClusterData node otherwise has no notion of its cloud
// provenance.
const InstanceTypeTagPrefix = "ec2-type:"

// InstanceTypeTag returns the EC2 instance type named by a node's tags,
// if any tag carries the InstanceTypeTagPrefix.
func InstanceTypeTag(tags map[string]struct{}) (string, bool) {
	for t := range tags {
		if name, ok := strings.CutPrefix(t, InstanceTypeTagPrefix); ok {
			return name, true
		}
	}
	return "", false
}

// NodeCost is the resolved hardware shape and on-demand cost estimate for
// one EC2-backed node. VCPUs/MemoryMiB are EC2's reported capacity for
// the node's instance type, surfaced alongside the cost estimate so a
// caller can cross-check it against the node's own reported t_cpu/t_mem
// (local-disk capacity is deliberately absent — see convertInstanceType).
type NodeCost struct {
	InstanceType   string
	VCPUs          int32
	MemoryMiB      int64
	MonthlyCostUSD float64
}

// NodeCosts resolves a NodeCost for every node in nodes carrying an
// InstanceTypeTagPrefix tag, keyed by node index; nodes without the tag
// are simply absent from the result. Nodes sharing an instance type
// share a single DescribeInstanceTypes/pricing lookup. Grounded on
// printCostEnrichment's (cmd/allocate.go) "resolve types, enrich with
// pricing, pick a match" shape, generalized from "one shape's cheapest
// candidate" to "every already-placed node's own type".
func NodeCosts(ctx context.Context, provider Provider, nodes []*cluster.Node) (map[int]NodeCost, error) {
	byType := map[string][]int{}
	for _, n := range nodes {
		if t, ok := InstanceTypeTag(n.Tags); ok {
			byType[t] = append(byType[t], n.Idx())
		}
	}
	if len(byType) == 0 {
		return nil, nil
	}

	result := make(map[int]NodeCost, len(nodes))
	for instanceType, idxs := range byType {
		types, err := provider.GetInstanceTypes(ctx, InstanceFilter{ExactTypes: []string{instanceType}})
		if err != nil {
			return nil, fmt.Errorf("resolving instance type %s: %w", instanceType, err)
		}
		if len(types) == 0 {
			continue
		}
		if _, err := provider.EnrichWithPricing(ctx, types); err != nil {
			return nil, fmt.Errorf("pricing instance type %s: %w", instanceType, err)
		}

		it := types[0]
		nc := NodeCost{
			InstanceType:   it.InstanceType,
			VCPUs:          it.VCPUs,
			MemoryMiB:      it.MemoryMiB,
			MonthlyCostUSD: it.MonthlyCost(),
		}
		for _, idx := range idxs {
			result[idx] = nc
		}
	}
	return result, nil
}
