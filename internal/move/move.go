// Package move enumerates and applies the placement-changing operations
// (moves) an instance can undergo: Failover, FailoverToAny,
// ReplaceSecondary, ReplacePrimary, ReplaceAndFailover, and
// FailoverAndReplace. Candidates depends on the instance's disk
// template's mirror type; Apply is a pure function from one ClusterData
// to another (or a typed failure), grounded on the same copy-on-write
// node update the teacher's bin packer uses when it tentatively places a
// workload and checks whether it fits.
package move

import (
	"fmt"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
)

// Variant identifies the kind of move. The iota order is the tie-break
// ordinal used when the balancer has to choose among equally-scoring
// candidates.
type Variant int

const (
	Failover Variant = iota
	ReplaceSecondary
	ReplacePrimary
	ReplaceAndFailover
	FailoverAndReplace
	FailoverToAny
)

func (v Variant) String() string {
	switch v {
	case Failover:
		return "Failover"
	case ReplaceSecondary:
		return "ReplaceSecondary"
	case ReplacePrimary:
		return "ReplacePrimary"
	case ReplaceAndFailover:
		return "ReplaceAndFailover"
	case FailoverAndReplace:
		return "FailoverAndReplace"
	case FailoverToAny:
		return "FailoverToAny"
	default:
		return "Unknown"
	}
}

// ChangesPrimary reports whether applying this variant can change an
// instance's primary node, the property no_instance_moves restricts on.
func (v Variant) ChangesPrimary() bool {
	switch v {
	case ReplaceSecondary:
		return false
	default:
		return true
	}
}

// Move is one candidate placement change: a variant plus the target node
// it operates against (unused, cluster.NoNode, for plain Failover, which
// has no target — it swaps the instance's existing primary/secondary).
type Move struct {
	Variant Variant
	Target  int
}

func (m Move) String() string {
	if m.Target == cluster.NoNode {
		return m.Variant.String()
	}
	return fmt.Sprintf("%s(%d)", m.Variant, m.Target)
}

// Options restricts which moves Candidates will enumerate, per the
// balancer/allocator configuration.
type Options struct {
	NoDiskMoves         bool
	NoInstanceMoves     bool
	EvacMode            bool
	RestrictedMigration bool
}

// Candidates enumerates the moves available to inst given its disk
// template's mirror type and the restrictions in opts. offlineOrDrained,
// consulted when EvacMode is set, reports whether a node index is offline/drained
// (the loader/caller-supplied predicate used to decide which instances
// evac_mode even considers).
func Candidates(cd *cluster.ClusterData, inst *cluster.Instance, opts Options, offlineOrDrained func(nodeIdx int) bool) []Move {
	if opts.EvacMode {
		primaryBad := offlineOrDrained(inst.Primary)
		secondaryBad := inst.HasSecondaryNode() && offlineOrDrained(inst.Secondary)
		if !primaryBad && !secondaryBad {
			return nil
		}
	}

	var moves []Move
	switch {
	case inst.DiskTemplate.IsInternalMirror():
		moves = internalMirrorCandidates(cd, inst)
	case inst.DiskTemplate.IsExternalMirror():
		moves = externalMirrorCandidates(cd, inst)
	default:
		return nil
	}

	primaryDrained := false
	if n, ok := cd.Nodes.Find(inst.Primary); ok {
		primaryDrained = n.Drained
	}
	return filterByOptions(moves, opts, primaryDrained)
}

func internalMirrorCandidates(cd *cluster.ClusterData, inst *cluster.Instance) []Move {
	var moves []Move
	moves = append(moves, Move{Variant: Failover, Target: cluster.NoNode})

	for _, idx := range cd.Nodes.Keys() {
		if idx != inst.Primary {
			moves = append(moves, Move{Variant: ReplaceSecondary, Target: idx})
		}
	}
	for _, idx := range cd.Nodes.Keys() {
		if idx != inst.Secondary {
			moves = append(moves, Move{Variant: ReplacePrimary, Target: idx})
			moves = append(moves, Move{Variant: ReplaceAndFailover, Target: idx})
			moves = append(moves, Move{Variant: FailoverAndReplace, Target: idx})
		}
	}
	return moves
}

func externalMirrorCandidates(cd *cluster.ClusterData, inst *cluster.Instance) []Move {
	var moves []Move
	for _, idx := range cd.Nodes.Keys() {
		if idx != inst.Primary {
			moves = append(moves, Move{Variant: FailoverToAny, Target: idx})
		}
	}
	return moves
}

func filterByOptions(moves []Move, opts Options, primaryDrained bool) []Move {
	var out []Move
	for _, m := range moves {
		if opts.NoDiskMoves && m.Variant != Failover && m.Variant != FailoverToAny {
			continue
		}
		if opts.NoInstanceMoves && m.Variant.ChangesPrimary() {
			continue
		}
		if opts.RestrictedMigration && m.Variant == ReplacePrimary {
			continue
		}
		if opts.RestrictedMigration && m.Variant == ReplaceAndFailover && !primaryDrained {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Apply applies move m to the instance at instIdx within cd, returning
// the resulting ClusterData. On a capacity or tag-exclusion violation it
// returns the original cd unchanged alongside a *cluster.FailError or a
// tag-conflict error; callers should treat any non-nil error as "this
// move is not viable" rather than a fatal condition.
func Apply(cd *cluster.ClusterData, instIdx int, m Move) (*cluster.ClusterData, error) {
	inst, ok := cd.Instances.Find(instIdx)
	if !ok {
		return cd, clustererr.New("move", "instance index %d not found", instIdx)
	}

	newPrimary, newSecondary, err := resolveTargets(inst, m)
	if err != nil {
		return cd, err
	}

	nodes := cd.Nodes.Clone()
	touched := map[int]bool{inst.Primary: true}
	if inst.HasSecondaryNode() {
		touched[inst.Secondary] = true
	}
	touched[newPrimary] = true
	if newSecondary != cluster.NoNode {
		touched[newSecondary] = true
	}

	// Step 1: remove inst from its old primary/secondary.
	oldPn := nodes.MustFind(inst.Primary)
	nodes.Add(oldPn.RemovePri(inst))
	if inst.HasSecondaryNode() {
		oldSn := nodes.MustFind(inst.Secondary)
		nodes.Add(oldSn.RemoveSec(inst))
	}

	// Step 2+3: add inst to the new primary/secondary, checking capacity
	// as we go.
	movedInst := inst.SetBoth(newPrimary, newSecondary)

	newPn := nodes.MustFind(newPrimary)
	newPn2, failErr := newPn.SetPri(movedInst)
	nodes.Add(newPn2)
	if failErr != nil {
		return cd, failErr
	}

	if newSecondary != cluster.NoNode {
		newSn := nodes.MustFind(newSecondary)
		newSn2, failErr := newSn.SetSec(movedInst)
		nodes.Add(newSn2)
		if failErr != nil {
			return cd, failErr
		}
	}

	// Step 6: exclusion-tag conflict — the new primary must not already
	// host (as primary) an instance sharing one of movedInst's tags.
	if conflict := tagConflict(cd, nodes.MustFind(newPrimary), movedInst); conflict {
		return cd, &cluster.FailError{Mode: clustererr.FailTags}
	}

	// Step 4: rebuild peers only for the touched nodes and recompute
	// r_mem/failN1; every other secondary-of instance whose primary
	// moved must also be reflected, so the lookup always consults the
	// post-move instance (movedInst takes the place of inst).
	lookup := func(idx int) (*cluster.Instance, bool) {
		if idx == instIdx {
			return movedInst, true
		}
		return cd.Instances.Find(idx)
	}
	for idx := range touched {
		n := nodes.MustFind(idx)
		nodes.Add(n.BuildPeers(lookup))
	}

	instances := cd.Instances.Clone()
	instances.Add(movedInst)

	return cd.WithNodes(nodes).WithInstances(instances), nil
}

// PlaceNew inserts inst — not yet present in cd — onto its own Primary
// (and, if it carries one, Secondary) node, checking capacity and
// exclusion tags exactly as Apply does for an existing instance's move.
// Used by the allocator (C7) to evaluate a candidate placement for an
// instance that does not exist in the cluster yet, the "synthesised
// placement starting from a cluster in which the instance is not yet
// present" the allocator's single-instance pass is specified to try.
func PlaceNew(cd *cluster.ClusterData, inst *cluster.Instance) (*cluster.ClusterData, error) {
	nodes := cd.Nodes.Clone()
	touched := map[int]bool{inst.Primary: true}
	if inst.HasSecondaryNode() {
		touched[inst.Secondary] = true
	}

	pn := nodes.MustFind(inst.Primary)
	pn2, failErr := pn.SetPri(inst)
	nodes.Add(pn2)
	if failErr != nil {
		return cd, failErr
	}

	if inst.HasSecondaryNode() {
		sn := nodes.MustFind(inst.Secondary)
		sn2, failErr := sn.SetSec(inst)
		nodes.Add(sn2)
		if failErr != nil {
			return cd, failErr
		}
	}

	if tagConflict(cd, nodes.MustFind(inst.Primary), inst) {
		return cd, &cluster.FailError{Mode: clustererr.FailTags}
	}

	lookup := func(idx int) (*cluster.Instance, bool) {
		if idx == inst.Idx() {
			return inst, true
		}
		return cd.Instances.Find(idx)
	}
	for idx := range touched {
		n := nodes.MustFind(idx)
		nodes.Add(n.BuildPeers(lookup))
	}

	instances := cd.Instances.Clone()
	instances.Add(inst)

	return cd.WithNodes(nodes).WithInstances(instances), nil
}

// resolveTargets computes the new (primary, secondary) pair a move
// produces, given the instance's current placement.
func resolveTargets(inst *cluster.Instance, m Move) (primary, secondary int, err error) {
	switch m.Variant {
	case Failover:
		if !inst.HasSecondaryNode() {
			return 0, 0, clustererr.New("move", "Failover requires a secondary node")
		}
		return inst.Secondary, inst.Primary, nil
	case FailoverToAny:
		return m.Target, cluster.NoNode, nil
	case ReplaceSecondary:
		return inst.Primary, m.Target, nil
	case ReplacePrimary:
		// Equivalent to failover, replace-secondary(m.Target), failover:
		// the primary becomes m.Target while the original secondary is
		// left untouched.
		return m.Target, inst.Secondary, nil
	case ReplaceAndFailover:
		// Replace the secondary with m.Target, then fail over onto it:
		// the new primary is m.Target, the new secondary is the
		// original primary.
		return m.Target, inst.Primary, nil
	case FailoverAndReplace:
		// Fail over onto the current secondary, then replace the
		// (new, formerly-primary) secondary with m.Target.
		return inst.Secondary, m.Target, nil
	default:
		return 0, 0, clustererr.New("move", "unknown move variant %v", m.Variant)
	}
}

// tagConflict reports whether movedInst, as a new primary on node,
// shares any exclusion tag with another instance already primary there.
func tagConflict(cd *cluster.ClusterData, node *cluster.Node, movedInst *cluster.Instance) bool {
	if len(movedInst.Tags) == 0 {
		return false
	}
	for _, peerIdx := range node.PList {
		if peerIdx == movedInst.Idx() {
			continue
		}
		peer, ok := cd.Instances.Find(peerIdx)
		if !ok {
			continue
		}
		for t := range movedInst.Tags {
			if _, shared := peer.Tags[t]; shared {
				return true
			}
		}
	}
	return false
}
