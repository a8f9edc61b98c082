package cluster

import "github.com/yiannist/clusterfit/internal/container"

// ClusterData is the top-level, immutable snapshot the rest of the engine
// operates on: the three keyed collections (nodes, instances, groups) plus
// the format/tag metadata carried through from the input. Every downstream
// package — loader, score, move, balance, allocate, group, format — reads
// and produces ClusterData values; none of them mutate one in place.
type ClusterData struct {
	Nodes     *container.Container[*Node]
	Instances *container.Container[*Instance]
	Groups    *container.Container[*Group]

	// ClusterTags are cluster-wide tags, consulted by exclusion-tag move
	// restrictions alongside each instance's own tags.
	ClusterTags map[string]struct{}

	// IPolicy is the cluster-default policy, used for any node or group
	// that does not carry its own.
	IPolicy IPolicy
}

// New builds an empty ClusterData with initialised containers, ready for
// the loader to populate.
func New() *ClusterData {
	return &ClusterData{
		Nodes:       container.New[*Node](),
		Instances:   container.New[*Instance](),
		Groups:      container.New[*Group](),
		ClusterTags: map[string]struct{}{},
	}
}

// WithNodes returns a shallow copy of cd with Nodes replaced. Downstream
// packages use this (rather than mutating cd.Nodes in place) to produce a
// new snapshot after a move or a loader pass.
func (cd *ClusterData) WithNodes(nodes *container.Container[*Node]) *ClusterData {
	c := *cd
	c.Nodes = nodes
	return &c
}

// WithInstances returns a shallow copy of cd with Instances replaced.
func (cd *ClusterData) WithInstances(instances *container.Container[*Instance]) *ClusterData {
	c := *cd
	c.Instances = instances
	return &c
}

// WithGroups returns a shallow copy of cd with Groups replaced.
func (cd *ClusterData) WithGroups(groups *container.Container[*Group]) *ClusterData {
	c := *cd
	c.Groups = groups
	return &c
}

// NodesInGroup returns the indices of every node belonging to the given
// group, used by the group dispatcher (C8) to scope a ClusterData down to
// one group's nodes before handing it to the balancer or allocator.
func (cd *ClusterData) NodesInGroup(groupIdx int) []int {
	var out []int
	for _, idx := range cd.Nodes.Keys() {
		n, _ := cd.Nodes.Find(idx)
		if n.Group == groupIdx {
			out = append(out, idx)
		}
	}
	return out
}
