package cluster

// AllocPolicy controls the order in which the group dispatcher (C8) tries
// node groups during allocation.
type AllocPolicy string

const (
	AllocPreferred   AllocPolicy = "preferred"
	AllocLastResort  AllocPolicy = "last_resort"
	AllocUnallocable AllocPolicy = "unallocable"
)

// Group is a node group: a named subset of nodes sharing an allocation
// policy, a network list, and an IPolicy that further restricts (on top
// of each member node's own policy) the instance shapes it will accept.
type Group struct {
	idx  int
	name string
	uuid string

	AllocPolicy AllocPolicy
	Networks    []string
	Policy      IPolicy
	Tags        map[string]struct{}
}

func (g *Group) Idx() int       { return g.idx }
func (g *Group) SetIdx(idx int) { g.idx = idx }
func (g *Group) Name() string   { return g.name }
func (g *Group) Alias() string  { return g.name }

// NewGroup is the smart constructor.
func NewGroup(name, uuid string, policy AllocPolicy) *Group {
	return &Group{
		name:        name,
		uuid:        uuid,
		AllocPolicy: policy,
		Tags:        map[string]struct{}{},
	}
}

// UUID returns the group's stable identifier, distinct from its
// human-readable (and renameable) Name.
func (g *Group) UUID() string { return g.uuid }

// IsAllocable reports whether the dispatcher may place new instances into
// this group at all.
func (g *Group) IsAllocable() bool {
	return g.AllocPolicy != AllocUnallocable
}
