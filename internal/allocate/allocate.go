// Package allocate implements single, bulk, and tiered instance
// allocation, relocation, and node evacuation. Single-instance allocation
// fans a candidate-node scan out across a bounded worker pool, grounded
// directly on the teacher's Engine.RunAll (internal/simulation/engine.go):
// the same sem := make(chan struct{}, n) plus sync.WaitGroup shape,
// generalized from "simulate every scenario" to "try every candidate
// node".
package allocate

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/container"
	"github.com/yiannist/clusterfit/internal/move"
	"github.com/yiannist/clusterfit/internal/score"
)

// Shape is the resource footprint tiered allocation repeats and shrinks,
// and the footprint AllocateSingle places once.
type Shape struct {
	Name         string
	Spec         cluster.ISpec
	DiskTemplate cluster.DiskTemplate
	RunStatus    cluster.RunStatus
}

// Result is one successful placement.
type Result struct {
	ClusterData *cluster.ClusterData
	InstanceIdx int
	Primary     int
	Secondary   int
	Score       float64
}

// attempt is one (primary, secondary) candidate evaluated during a
// single-instance allocation scan.
type attempt struct {
	primary   int
	secondary int
}

// AllocateSingle tries every candidate primary node (and, for
// internal-mirror templates, every compatible secondary node distinct
// from the primary), applying move.PlaceNew for each and keeping the one
// with the lowest resulting cluster score. If no attempt succeeds it
// returns the aggregated clustererr.FailStats describing how many
// candidates failed for each reason.
func AllocateSingle(ctx context.Context, cd *cluster.ClusterData, shape Shape) (*Result, clustererr.FailStats, error) {
	attempts := candidateAttempts(cd, shape.DiskTemplate)
	if len(attempts) == 0 {
		return nil, nil, clustererr.New("allocate", "no candidate nodes available for shape %q", shape.Name)
	}

	results := make([]*Result, len(attempts))
	errs := make([]error, len(attempts))

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	for i, a := range attempts {
		wg.Add(1)
		go func(idx int, a attempt) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}
			results[idx], errs[idx] = tryPlace(cd, shape, a)
		}(i, a)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stats := clustererr.FailStats{}
	var best *Result
	for _, err := range errs {
		if fe, ok := err.(*cluster.FailError); ok {
			stats.Add(fe.Mode)
		}
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if best == nil || r.Score < best.Score {
			best = r
		}
	}

	if best == nil {
		return nil, stats, clustererr.New("allocate", "no node accepted shape %q", shape.Name)
	}
	return best, stats, nil
}

func tryPlace(cd *cluster.ClusterData, shape Shape, a attempt) (*Result, error) {
	idx := nextInstanceIdx(cd.Instances)
	runStatus := shape.RunStatus
	if runStatus == "" {
		runStatus = cluster.StatusRunning
	}
	inst := cluster.NewInstance(shape.Name, shape.Spec, shape.DiskTemplate, a.primary, a.secondary, runStatus)
	inst.SetIdx(idx)

	newCd, err := move.PlaceNew(cd, inst)
	if err != nil {
		return nil, err
	}
	return &Result{
		ClusterData: newCd,
		InstanceIdx: idx,
		Primary:     a.primary,
		Secondary:   a.secondary,
		Score:       score.Score(newCd.Nodes, newCd.Instances),
	}, nil
}

func candidateAttempts(cd *cluster.ClusterData, dt cluster.DiskTemplate) []attempt {
	var attempts []attempt
	nodeIdxs := cd.Nodes.Keys()
	for _, p := range nodeIdxs {
		pn := cd.Nodes.MustFind(p)
		if pn.Offline || !pn.VMCapable {
			continue
		}
		if dt.IsInternalMirror() {
			for _, s := range nodeIdxs {
				if s == p {
					continue
				}
				sn := cd.Nodes.MustFind(s)
				if sn.Offline || !sn.VMCapable {
					continue
				}
				attempts = append(attempts, attempt{primary: p, secondary: s})
			}
		} else {
			attempts = append(attempts, attempt{primary: p, secondary: cluster.NoNode})
		}
	}
	return attempts
}

func nextInstanceIdx(instances *container.Container[*cluster.Instance]) int {
	next := 0
	for _, k := range instances.Keys() {
		if k >= next {
			next = k + 1
		}
	}
	return next
}

// BulkResult records the outcome of one instance in a bulk allocation.
type BulkResult struct {
	Name  string
	Ok    bool
	Stats clustererr.FailStats
}

// AllocateBulk performs single-instance allocation for each shape in
// order, feeding each successful result's ClusterData into the next
// attempt. It aborts on the first failure and reports which shape
// failed, along with the results for everything that succeeded before
// it.
func AllocateBulk(ctx context.Context, cd *cluster.ClusterData, shapes []Shape) (*cluster.ClusterData, []BulkResult, error) {
	current := cd
	var outcomes []BulkResult
	for _, shape := range shapes {
		res, stats, err := AllocateSingle(ctx, current, shape)
		if err != nil {
			outcomes = append(outcomes, BulkResult{Name: shape.Name, Ok: false, Stats: stats})
			return current, outcomes, clustererr.New("allocate", "bulk allocation aborted at %q: %v", shape.Name, err)
		}
		current = res.ClusterData
		outcomes = append(outcomes, BulkResult{Name: shape.Name, Ok: true})
	}
	return current, outcomes, nil
}

// TierResult records how many instances of a given shape were placed
// before that tier's shape had to shrink.
type TierResult struct {
	Shape Shape
	Count int
}

// shrink steps, in MiB/vcpu units.
const (
	memStep  = 64
	diskStep = 256
	vcpuStep = 1
)

// AllocateTiered repeatedly allocates instances of the initial shape
// until allocation fails, then shrinks the shape to the lexicographically
// next smaller one (decreasing mem, then disk, then vcpus, each by its
// unit step, freezing any field that would drop below policy's minimum)
// and repeats. It terminates when all three fields are frozen, and
// reports how many instances were placed at each tier.
func AllocateTiered(ctx context.Context, cd *cluster.ClusterData, initial Shape, policy cluster.IPolicy) (*cluster.ClusterData, []TierResult, error) {
	current := cd
	shape := initial
	var tiers []TierResult

	for {
		count := 0
		for {
			res, _, err := AllocateSingle(ctx, current, shape)
			if err != nil {
				break
			}
			current = res.ClusterData
			count++
		}
		tiers = append(tiers, TierResult{Shape: shape, Count: count})

		next, frozen := shrink(shape, policy)
		if frozen {
			break
		}
		shape = next
	}
	return current, tiers, nil
}

// shrink returns the next smaller shape and whether every field is
// already frozen at policy's minimum (in which case the returned shape
// equals the input and tiering must stop).
func shrink(s Shape, policy cluster.IPolicy) (Shape, bool) {
	min := policy.Min
	next := s

	switch {
	case next.Spec.Mem-memStep >= min.Mem:
		next.Spec.Mem -= memStep
	case next.Spec.Disk-diskStep >= min.Disk:
		next.Spec.Disk -= diskStep
	case next.Spec.CPU-vcpuStep >= min.CPU:
		next.Spec.CPU -= vcpuStep
	default:
		return s, true
	}
	return next, false
}

// Relocate enumerates ReplaceSecondary (internal-mirror) or
// FailoverToAny (external-mirror) moves for instIdx over every node not
// in forbidden, and returns the one minimising cluster score.
func Relocate(cd *cluster.ClusterData, instIdx int, forbidden map[int]bool) (*Result, error) {
	inst, ok := cd.Instances.Find(instIdx)
	if !ok {
		return nil, clustererr.New("allocate", "instance index %d not found", instIdx)
	}

	var variant move.Variant
	switch {
	case inst.DiskTemplate.IsInternalMirror():
		variant = move.ReplaceSecondary
	case inst.DiskTemplate.IsExternalMirror():
		variant = move.FailoverToAny
	default:
		return nil, clustererr.New("allocate", "instance %q has no mirror, cannot be relocated", inst.Name())
	}

	var best *Result
	for _, idx := range cd.Nodes.Keys() {
		if forbidden[idx] {
			continue
		}
		if variant == move.ReplaceSecondary && idx == inst.Primary {
			continue
		}
		if variant == move.FailoverToAny && idx == inst.Primary {
			continue
		}
		newCd, err := move.Apply(cd, instIdx, move.Move{Variant: variant, Target: idx})
		if err != nil {
			continue
		}
		newInst := newCd.Instances.MustFind(instIdx)
		r := &Result{
			ClusterData: newCd,
			InstanceIdx: instIdx,
			Primary:     newInst.Primary,
			Secondary:   newInst.Secondary,
			Score:       score.Score(newCd.Nodes, newCd.Instances),
		}
		if best == nil || r.Score < best.Score {
			best = r
		}
	}
	if best == nil {
		return nil, clustererr.New("allocate", "no eligible node to relocate instance %q onto", inst.Name())
	}
	return best, nil
}

// EvacMode selects which of an instance's roles node evacuation moves.
type EvacMode string

const (
	EvacPrimaryOnly   EvacMode = "primary-only"
	EvacSecondaryOnly EvacMode = "secondary-only"
	EvacAll           EvacMode = "all"
)

// EvacResult records one instance's evacuation outcome.
type EvacResult struct {
	InstanceIdx int
	Ok          bool
	Err         error
}

// EvacuateNodes relocates, per mode, every instance whose primary and/or
// secondary lies in nodeIdxs, treating those same nodes as forbidden
// relocation targets.
func EvacuateNodes(cd *cluster.ClusterData, nodeIdxs []int, mode EvacMode) (*cluster.ClusterData, []EvacResult) {
	forbidden := map[int]bool{}
	for _, idx := range nodeIdxs {
		forbidden[idx] = true
	}

	var affected []int
	for _, instIdx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(instIdx)
		onPrimary := forbidden[inst.Primary]
		onSecondary := inst.HasSecondaryNode() && forbidden[inst.Secondary]
		switch mode {
		case EvacPrimaryOnly:
			if onPrimary {
				affected = append(affected, instIdx)
			}
		case EvacSecondaryOnly:
			if onSecondary {
				affected = append(affected, instIdx)
			}
		default: // EvacAll
			if onPrimary || onSecondary {
				affected = append(affected, instIdx)
			}
		}
	}
	sort.Ints(affected)

	current := cd
	var results []EvacResult
	for _, instIdx := range affected {
		res, err := Relocate(current, instIdx, forbidden)
		if err != nil {
			results = append(results, EvacResult{InstanceIdx: instIdx, Ok: false, Err: err})
			continue
		}
		current = res.ClusterData
		results = append(results, EvacResult{InstanceIdx: instIdx, Ok: true})
	}
	return current, results
}
