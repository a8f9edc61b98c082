package loader

import (
	"sort"
	"strings"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/container"
)

const iextagsPrefix = "htools:iextags:"

// Merge runs the eight-step pipeline described for the loader: it builds
// groups, then nodes, then instances (resolving name references into
// indices as it goes), overlays dynamic utilisation, extends the
// exclusion-tag set from cluster tags, resolves the selection/exclusion
// lists, computes common-suffix aliases, filters instance tags down to
// the exclusion prefixes, marks instances movable/immovable, registers
// every instance with its primary/secondary node, and finally rebuilds
// peers and marks split-group instances immovable.
//
// Unlike Orchestrator.Recommend in the teacher, each step here is a pure
// transformation of a ClusterData value rather than an in-place mutation
// of shared state; the pipeline still reads top-to-bottom as a sequence
// of named steps for the same reason the teacher's does.
func Merge(raw RawCluster, opts MergeOptions) (*cluster.ClusterData, error) {
	cd := cluster.New()
	cd.IPolicy = raw.IPolicy
	for _, t := range raw.ClusterTags {
		cd.ClusterTags[t] = struct{}{}
	}

	// Step 2 (done early, since later steps need the final ExTags list):
	// extend extags by extracting cluster tags beginning with the fixed
	// prefix; the suffix after the prefix becomes a tag-prefix.
	extags := append([]string(nil), opts.ExTags...)
	for _, t := range raw.ClusterTags {
		if strings.HasPrefix(t, iextagsPrefix) {
			extags = append(extags, strings.TrimPrefix(t, iextagsPrefix))
		}
	}

	groups, err := buildGroups(raw.Groups)
	if err != nil {
		return nil, err
	}
	cd.Groups = groups

	nodes, nodeIdxByName, err := buildNodes(raw.Nodes, groups)
	if err != nil {
		return nil, err
	}
	cd.Nodes = nodes

	instances, err := buildInstances(raw.Instances, nodeIdxByName, opts.DynUtil)
	if err != nil {
		return nil, err
	}
	cd.Instances = instances

	// Step 3: resolve selinsts/exinsts into indices; ambiguous or unknown
	// names fail the whole merge.
	selSet, err := resolveNames(instances, opts.SelInstances)
	if err != nil {
		return nil, clustererr.New("loader", "resolving select_instances: %v", err)
	}
	exSet, err := resolveNames(instances, opts.ExInstances)
	if err != nil {
		return nil, clustererr.New("loader", "resolving exclude_instances: %v", err)
	}

	// Step 4: compute the common DNS suffix and set aliases.
	suffix := commonSuffix(allNames(nodes, instances))
	if suffix != "" {
		applyAliases(nodes, instances, suffix)
	}

	// Step 5: filter each instance's tag list down to the exclusion
	// prefixes, and step 6: mark movable/immovable from selinsts/exinsts.
	for _, idx := range instances.Keys() {
		inst := instances.MustFind(idx)
		inst.Tags = filterTags(inst.Tags, extags)
		movable := true
		if exSet[idx] {
			movable = false
		}
		if len(selSet) > 0 && !selSet[idx] {
			movable = false
		}
		instances.Add(inst.SetMovable(movable))
	}

	// Step 7: register every instance with its primary and secondary.
	if err := registerPlacements(nodes, instances); err != nil {
		return nil, err
	}

	// Step 8: node policy from group, rebuild peers, mark split-group
	// instances immovable.
	applyGroupPolicies(nodes, groups, cd.IPolicy)
	rebuildAllPeers(nodes, instances)
	markSplitGroupInstances(nodes, instances)

	return cd, nil
}

func buildGroups(raw []RawGroup) (*container.Container[*cluster.Group], error) {
	groups := container.New[*cluster.Group]()
	for i, rg := range raw {
		g := cluster.NewGroup(rg.Name, rg.UUID, rg.AllocPolicy)
		g.Networks = rg.Networks
		g.Policy = rg.Policy
		for _, t := range rg.Tags {
			g.Tags[t] = struct{}{}
		}
		g.SetIdx(i)
		groups.Add(g)
	}
	return groups, nil
}

func buildNodes(raw []RawNode, groups *container.Container[*cluster.Group]) (*container.Container[*cluster.Node], map[string]int, error) {
	nodes := container.New[*cluster.Node]()
	byName := make(map[string]int, len(raw))
	for i, rn := range raw {
		n := cluster.NewNode(rn.Name, rn.TMem, rn.TDsk, rn.TCpu, rn.TSpindles, rn.TDiskFree, rn.TMemNode, rn.XMem)
		n.Offline = rn.Offline
		n.Drained = rn.Drained
		n.VMCapable = rn.VMCapable
		n.MasterCapable = rn.MasterCapable
		n.MDsk = rn.MDsk
		n.MCpu = rn.MCpu
		for _, t := range rn.Tags {
			n.Tags[t] = struct{}{}
		}
		if rn.Group != "" {
			g, err := groups.FindByName(rn.Group)
			if err != nil {
				return nil, nil, clustererr.New("loader", "node %q: unresolvable group %q: %v", rn.Name, rn.Group, err)
			}
			n.Group = g.Idx()
		}
		n.SetIdx(i)
		nodes.Add(n)
		byName[rn.Name] = i
	}
	return nodes, byName, nil
}

func buildInstances(raw []RawInstance, nodeIdxByName map[string]int, um map[string]cluster.DynUtil) (*container.Container[*cluster.Instance], error) {
	instances := container.New[*cluster.Instance]()
	for i, ri := range raw {
		primary, ok := nodeIdxByName[ri.PrimaryNode]
		if !ok {
			return nil, clustererr.New("loader", "instance %q: unknown primary node %q", ri.Name, ri.PrimaryNode)
		}
		secondary := cluster.NoNode
		if ri.SecondaryNode != "" {
			secondary, ok = nodeIdxByName[ri.SecondaryNode]
			if !ok {
				return nil, clustererr.New("loader", "instance %q: unknown secondary node %q", ri.Name, ri.SecondaryNode)
			}
		}
		inst := cluster.NewInstance(ri.Name, ri.Spec, ri.DiskTemplate, primary, secondary, ri.RunStatus)
		inst.AutoBalance = ri.AutoBalance
		for _, t := range ri.Tags {
			inst.Tags[t] = struct{}{}
		}
		// Step 1: overlay util onto any instance found by name in um;
		// unknown names are skipped silently.
		if u, ok := um[ri.Name]; ok {
			inst.Util = u
		}
		inst.SetIdx(i)
		instances.Add(inst)
	}
	return instances, nil
}

// resolveNames resolves a list of instance names into a set of indices.
// An empty input list resolves to an empty (not nil) set, matching "no
// restriction" semantics for SelInstances and "nothing excluded" for
// ExInstances.
func resolveNames(instances *container.Container[*cluster.Instance], names []string) (map[int]bool, error) {
	out := map[int]bool{}
	if len(names) == 0 {
		return out, nil
	}
	var bad []string
	for _, name := range names {
		inst, err := instances.FindByName(name)
		if err != nil {
			bad = append(bad, name)
			continue
		}
		out[inst.Idx()] = true
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, clustererr.New("loader", "unresolvable instance name(s): %s", strings.Join(bad, ", "))
	}
	return out, nil
}

func allNames(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) []string {
	var names []string
	for _, n := range nodes.Elems() {
		names = append(names, n.Name())
	}
	for _, i := range instances.Elems() {
		names = append(names, i.Name())
	}
	return names
}

// commonSuffix returns the longest string that begins with '.' and is a
// suffix of every name given, or "" if there is no such string.
func commonSuffix(names []string) string {
	if len(names) == 0 {
		return ""
	}
	first := names[0]
	for i, c := range first {
		if c != '.' {
			continue
		}
		cand := first[i:]
		allMatch := true
		for _, n := range names {
			if !strings.HasSuffix(n, cand) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return cand
		}
	}
	return ""
}

func applyAliases(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance], suffix string) {
	for _, idx := range nodes.Keys() {
		n := nodes.MustFind(idx)
		nodes.Add(n.SetAlias(strings.TrimSuffix(n.Name(), suffix)))
	}
	for _, idx := range instances.Keys() {
		i := instances.MustFind(idx)
		instances.Add(i.SetAlias(strings.TrimSuffix(i.Name(), suffix)))
	}
}

func filterTags(tags map[string]struct{}, extags []string) map[string]struct{} {
	if len(extags) == 0 {
		return map[string]struct{}{}
	}
	out := map[string]struct{}{}
	for t := range tags {
		for _, prefix := range extags {
			if strings.HasPrefix(t, prefix) {
				out[t] = struct{}{}
				break
			}
		}
	}
	return out
}

func registerPlacements(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) error {
	for _, idx := range instances.Keys() {
		inst := instances.MustFind(idx)

		pn, ok := nodes.Find(inst.Primary)
		if !ok {
			return clustererr.New("loader", "instance %q: primary node index %d not found", inst.Name(), inst.Primary)
		}
		newPn, err := pn.SetPri(inst)
		if err != nil {
			return clustererr.New("loader", "instance %q: registering primary: %v", inst.Name(), err)
		}
		nodes.Add(newPn)

		if inst.HasSecondaryNode() {
			sn, ok := nodes.Find(inst.Secondary)
			if !ok {
				return clustererr.New("loader", "instance %q: secondary node index %d not found", inst.Name(), inst.Secondary)
			}
			newSn, err := sn.SetSec(inst)
			if err != nil {
				return clustererr.New("loader", "instance %q: registering secondary: %v", inst.Name(), err)
			}
			nodes.Add(newSn)
		}
	}
	return nil
}

func applyGroupPolicies(nodes *container.Container[*cluster.Node], groups *container.Container[*cluster.Group], clusterDefault cluster.IPolicy) {
	for _, idx := range nodes.Keys() {
		n := nodes.MustFind(idx)
		policy := clusterDefault
		if g, ok := groups.Find(n.Group); ok {
			policy = g.Policy
		}
		nodes.Add(n.SetPolicy(policy))
	}
}

func rebuildAllPeers(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) {
	lookup := func(idx int) (*cluster.Instance, bool) { return instances.Find(idx) }
	for _, idx := range nodes.Keys() {
		n := nodes.MustFind(idx)
		nodes.Add(n.BuildPeers(lookup))
	}
}

func markSplitGroupInstances(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) {
	for _, idx := range instances.Keys() {
		inst := instances.MustFind(idx)
		if !inst.HasSecondaryNode() {
			continue
		}
		pn, _ := nodes.Find(inst.Primary)
		sn, _ := nodes.Find(inst.Secondary)
		if pn.Group != sn.Group {
			instances.Add(inst.SetMovable(false))
		}
	}
}
