// Package balance implements the greedy cluster balancer: at each step it
// evaluates every (instance, move) pair, applies the single
// best-scoring one, and repeats until one of four termination
// conditions fires. The control flow is grounded on the teacher's
// Engine.RunAll/runOne "evaluate every candidate, keep the best, loop"
// shape, generalized from a one-shot evaluation of independent scenarios
// to an iterated search over a single evolving cluster state.
package balance

import (
	"context"
	"sort"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/move"
	"github.com/yiannist/clusterfit/internal/score"
)

// Placement records one balancing step: the instance moved, the move
// applied, its before/after primary and secondary, the resulting cluster
// score, and the node indices it touched (used to group placements into
// jobsets).
type Placement struct {
	InstanceIdx  int
	Move         move.Move
	OldPrimary   int
	OldSecondary int
	NewPrimary   int
	NewSecondary int
	Score        float64
	NodesTouched []int
}

// Options configures the balancer's termination conditions and the move
// restrictions passed through to move.Candidates.
type Options struct {
	MinScore     float64
	MaxLength    int // 0 means unlimited
	MinGain      float64
	MinGainLimit float64
	MoveOptions  move.Options
}

// Balance runs the greedy loop described in the termination-condition
// table: it stops as soon as the score drops to MinScore, the placement
// count reaches MaxLength, no candidate move improves on the current
// score, or the best available improvement is too small relative to
// MinGain/MinGainLimit to be worth the churn. It returns the final
// ClusterData and the ordered list of placements applied to reach it.
func Balance(ctx context.Context, cd *cluster.ClusterData, opts Options) (*cluster.ClusterData, []Placement, error) {
	var placements []Placement
	current := cd
	best := score.Score(current.Nodes, current.Instances)

	for {
		if err := ctx.Err(); err != nil {
			return current, placements, err
		}

		// Condition 1: s* <= min_score.
		if best <= opts.MinScore {
			return current, placements, nil
		}
		// Condition 2: placements count >= max_length.
		if opts.MaxLength > 0 && len(placements) >= opts.MaxLength {
			return current, placements, nil
		}

		candidate, found := bestCandidate(current, opts)

		// Condition 3: the best candidate move does not improve the score.
		if !found || candidate.score >= best {
			return current, placements, nil
		}

		gain := best - candidate.score
		// Condition 4: diminishing-returns cutoff.
		if gain < opts.MinGain && best < opts.MinGainLimit {
			return current, placements, nil
		}

		applied, err := move.Apply(current, candidate.instIdx, candidate.move)
		if err != nil {
			// The scan below only keeps moves that already applied
			// successfully once; a second failure here would mean the
			// cluster changed concurrently, which cannot happen in this
			// single-threaded core.
			return current, placements, err
		}
		current = applied
		best = candidate.score
		placements = append(placements, candidate.toPlacement())
	}
}

// scanResult is the internal bookkeeping bestCandidate uses before it is
// turned into a public Placement.
type scanResult struct {
	instIdx      int
	move         move.Move
	oldPrimary   int
	oldSecondary int
	newPrimary   int
	newSecondary int
	touched      []int
	score        float64
}

func (r scanResult) toPlacement() Placement {
	return Placement{
		InstanceIdx:  r.instIdx,
		Move:         r.move,
		OldPrimary:   r.oldPrimary,
		OldSecondary: r.oldSecondary,
		NewPrimary:   r.newPrimary,
		NewSecondary: r.newSecondary,
		Score:        r.score,
		NodesTouched: r.touched,
	}
}

// bestCandidate evaluates every (instance, move) pair and returns the one
// yielding the lowest resulting score, tie-broken by lowest instance
// index, then lowest move variant ordinal, then lowest target-node
// index.
func bestCandidate(cd *cluster.ClusterData, opts Options) (scanResult, bool) {
	offlineOrDrained := func(idx int) bool {
		n, ok := cd.Nodes.Find(idx)
		return ok && (n.Offline || n.Drained)
	}

	var results []scanResult
	for _, instIdx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(instIdx)
		if !inst.Movable || !inst.AutoBalance {
			continue
		}
		moves := move.Candidates(cd, inst, opts.MoveOptions, offlineOrDrained)
		for _, m := range moves {
			newCd, err := move.Apply(cd, instIdx, m)
			if err != nil {
				continue
			}
			newInst := newCd.Instances.MustFind(instIdx)
			results = append(results, scanResult{
				instIdx:      instIdx,
				move:         m,
				oldPrimary:   inst.Primary,
				oldSecondary: inst.Secondary,
				newPrimary:   newInst.Primary,
				newSecondary: newInst.Secondary,
				touched:      touchedNodes(inst, newInst),
				score:        score.Score(newCd.Nodes, newCd.Instances),
			})
		}
	}

	if len(results) == 0 {
		return scanResult{}, false
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score != b.score {
			return a.score < b.score
		}
		if a.instIdx != b.instIdx {
			return a.instIdx < b.instIdx
		}
		if a.move.Variant != b.move.Variant {
			return a.move.Variant < b.move.Variant
		}
		return a.move.Target < b.move.Target
	})
	return results[0], true
}

func touchedNodes(oldInst, newInst *cluster.Instance) []int {
	set := map[int]bool{oldInst.Primary: true, newInst.Primary: true}
	if oldInst.HasSecondaryNode() {
		set[oldInst.Secondary] = true
	}
	if newInst.HasSecondaryNode() {
		set[newInst.Secondary] = true
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Jobsets groups placements for parallel execution: a left-to-right
// sweep over the final placement list that starts a new jobset whenever
// the next placement touches a node already touched by the current one.
// This is a display grouping only; it has no effect on the placements
// already chosen by Balance.
func Jobsets(placements []Placement) [][]Placement {
	var jobsets [][]Placement
	var current []Placement
	touched := map[int]bool{}

	for _, p := range placements {
		overlaps := false
		for _, n := range p.NodesTouched {
			if touched[n] {
				overlaps = true
				break
			}
		}
		if overlaps {
			jobsets = append(jobsets, current)
			current = nil
			touched = map[int]bool{}
		}
		current = append(current, p)
		for _, n := range p.NodesTouched {
			touched[n] = true
		}
	}
	if len(current) > 0 {
		jobsets = append(jobsets, current)
	}
	return jobsets
}
