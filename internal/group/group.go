// Package group implements the group dispatcher (C8): it scopes a full
// ClusterData down to a single node group's sub-cluster for balancing
// (balancing is strictly intra-group), and fans allocation out across
// every allocable group, preferred ones before last_resort ones, merging
// each candidate's result back into the full cluster. The fan-out is
// grounded on the teacher's GenerateScenarios/Engine.RunAll shape
// (internal/simulation/engine.go): partition by key (there, instance
// family/strategy; here, node group), evaluate each partition
// independently, and pick the best.
package group

import (
	"context"
	"sort"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/container"
	"github.com/yiannist/clusterfit/internal/score"
)

// Select resolves which group to operate on. An explicit uuid always
// wins; with uuid == "", it succeeds only when the cluster has exactly
// one group (ambiguous otherwise, per §4.8: "fails if more than one
// group exists and none was specified").
func Select(cd *cluster.ClusterData, uuid string) (int, error) {
	if uuid != "" {
		for _, idx := range cd.Groups.Keys() {
			g := cd.Groups.MustFind(idx)
			if g.UUID() == uuid {
				return idx, nil
			}
		}
		return 0, clustererr.New("group", "no group with uuid %q", uuid)
	}

	keys := cd.Groups.Keys()
	switch len(keys) {
	case 0:
		return 0, clustererr.New("group", "cluster has no groups")
	case 1:
		return keys[0], nil
	default:
		return 0, clustererr.New("group", "more than one group present (%d); specify --group", len(keys))
	}
}

// Scope builds the sub-ClusterData the balancer is allowed to see for
// groupIdx: every online, vm-capable node belonging to the group, and
// every instance whose primary lies among them. Per P5 an instance whose
// primary and secondary straddle two groups is already marked immovable
// by the loader, so it is safe to include here without extra filtering.
func Scope(cd *cluster.ClusterData, groupIdx int) *cluster.ClusterData {
	nodes := container.New[*cluster.Node]()
	inGroup := map[int]bool{}
	for _, idx := range cd.Nodes.Keys() {
		n := cd.Nodes.MustFind(idx)
		if n.Group != groupIdx {
			continue
		}
		if n.Offline || !n.VMCapable {
			continue
		}
		inGroup[idx] = true
		nodes.Add(n)
	}

	instances := container.New[*cluster.Instance]()
	for _, idx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(idx)
		if inGroup[inst.Primary] {
			instances.Add(inst)
		}
	}

	sub := cd.WithNodes(nodes).WithInstances(instances)
	sub.Groups = cd.Groups
	sub.ClusterTags = cd.ClusterTags
	sub.IPolicy = cd.IPolicy
	return sub
}

// merge folds a scoped sub-cluster's nodes and instances back into the
// full cluster, overwriting (or adding, for a newly allocated instance)
// every key the sub-cluster carries. Nodes/instances outside the scope
// are left untouched.
func merge(full, sub *cluster.ClusterData) *cluster.ClusterData {
	nodes := full.Nodes.Clone()
	for _, idx := range sub.Nodes.Keys() {
		nodes.Add(sub.Nodes.MustFind(idx))
	}
	instances := full.Instances.Clone()
	for _, idx := range sub.Instances.Keys() {
		instances.Add(sub.Instances.MustFind(idx))
	}
	return full.WithNodes(nodes).WithInstances(instances)
}

// BalanceGroup resolves uuid to a group, scopes cd down to it, runs the
// balancer on the sub-cluster, and merges the result back into the full
// ClusterData. The returned placements' node/instance indices are the
// full cluster's, unchanged by scoping.
func BalanceGroup(ctx context.Context, cd *cluster.ClusterData, uuid string, opts balance.Options) (*cluster.ClusterData, []balance.Placement, error) {
	groupIdx, err := Select(cd, uuid)
	if err != nil {
		return nil, nil, err
	}

	sub := Scope(cd, groupIdx)
	result, placements, err := balance.Balance(ctx, sub, opts)
	if err != nil {
		return nil, nil, err
	}
	return merge(cd, result), placements, nil
}

// AllocResult is the outcome of trying one group during dispatched
// allocation.
type AllocResult struct {
	GroupIdx int
	Result   *allocate.Result
	Score    float64
}

// AllocateAcrossGroups tries AllocateSingle against every group with
// AllocPolicy preferred; if none accepts the shape, it falls back to
// every last_resort group. unallocable groups are never tried. Among all
// groups that accept the shape at a given tier, the one yielding the
// lowest resulting cluster score wins; its result is merged back into
// the full ClusterData and returned alongside which group was chosen.
func AllocateAcrossGroups(ctx context.Context, cd *cluster.ClusterData, shape allocate.Shape) (*cluster.ClusterData, *AllocResult, error) {
	preferred, lastResort := partitionGroups(cd)

	for _, tier := range [][]int{preferred, lastResort} {
		if best := tryTier(ctx, cd, shape, tier); best != nil {
			merged := merge(cd, best.Result.ClusterData)
			return merged, best, nil
		}
	}
	return nil, nil, clustererr.New("group", "no allocable group accepted shape %q", shape.Name)
}

func partitionGroups(cd *cluster.ClusterData) (preferred, lastResort []int) {
	for _, idx := range cd.Groups.Keys() {
		g := cd.Groups.MustFind(idx)
		switch g.AllocPolicy {
		case cluster.AllocPreferred:
			preferred = append(preferred, idx)
		case cluster.AllocLastResort:
			lastResort = append(lastResort, idx)
		}
	}
	return preferred, lastResort
}

func tryTier(ctx context.Context, cd *cluster.ClusterData, shape allocate.Shape, groupIdxs []int) *AllocResult {
	var candidates []*AllocResult
	for _, groupIdx := range groupIdxs {
		sub := Scope(cd, groupIdx)
		res, _, err := allocate.AllocateSingle(ctx, sub, shape)
		if err != nil {
			continue
		}
		candidates = append(candidates, &AllocResult{
			GroupIdx: groupIdx,
			Result:   res,
			Score:    score.Score(res.ClusterData.Nodes, res.ClusterData.Instances),
		})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].GroupIdx < candidates[j].GroupIdx
	})
	return candidates[0]
}
