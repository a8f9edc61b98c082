package cluster

// NoNode is the sentinel used for an instance's Secondary (or, in the
// rare degenerate case, Primary) node index when no such node exists —
// e.g. a diskless or external-mirror instance has no secondary. Chosen
// over a *int field so that Instance stays a plain value type;
// every place that reads Secondary must compare against NoNode rather
// than against a nil pointer.
const NoNode = -1

// RunStatus is an instance's administrative/operational state as reported
// by the loader's input, not a value this package computes.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusStopped   RunStatus = "stopped"
	StatusAdminDown RunStatus = "ADMIN_down"
	StatusErrorDown RunStatus = "ERROR_down"
	StatusErrorUp   RunStatus = "ERROR_up"
	StatusNodedown  RunStatus = "nodedown"
	StatusWrongnode RunStatus = "wrongnode"
	StatusUserdown  RunStatus = "user_down"
	StatusUnknown   RunStatus = "unknown"
)

// Instance is a value-type snapshot of one virtual machine: its static
// footprint, its placement (primary/secondary node indices), its disk
// template, and the dynamic-utilisation overlay layered on top. A move's
// application never mutates an instance in place: it returns a new value
// and the caller replaces the container entry. The loader's merge pass
// does set fields (such as the filtered tags) directly on the instances
// it builds before they are registered.
type Instance struct {
	idx   int
	name  string
	alias string

	Spec         ISpec
	DiskTemplate DiskTemplate
	Primary      int
	Secondary    int
	RunStatus    RunStatus
	AutoBalance  bool
	Movable      bool
	Tags         map[string]struct{}
	Util         DynUtil
}

func (i *Instance) Idx() int       { return i.idx }
func (i *Instance) SetIdx(idx int) { i.idx = idx }
func (i *Instance) Name() string   { return i.name }
func (i *Instance) Alias() string  { return i.alias }

// NewInstance is the smart constructor: it fills in the common-suffix
// alias as the full name (the loader overwrites it once it has computed
// the cluster-wide common suffix) and defaults Secondary to NoNode for
// any template without a secondary node.
func NewInstance(name string, spec ISpec, dt DiskTemplate, primary, secondary int, status RunStatus) *Instance {
	if !dt.HasSecondary() {
		secondary = NoNode
	}
	return &Instance{
		name:         name,
		alias:        name,
		Spec:         spec,
		DiskTemplate: dt,
		Primary:      primary,
		Secondary:    secondary,
		RunStatus:    status,
		AutoBalance:  true,
		Movable:      true,
		Tags:         map[string]struct{}{},
	}
}

// SetAlias returns a copy of i with its alias replaced, used by the
// loader once it has computed the cluster-wide common name suffix.
func (i *Instance) SetAlias(alias string) *Instance {
	n := *i
	n.alias = alias
	return &n
}

// SetPrimary returns a copy of i with its primary node replaced.
func (i *Instance) SetPrimary(node int) *Instance {
	n := *i
	n.Primary = node
	return &n
}

// SetSecondary returns a copy of i with its secondary node replaced.
func (i *Instance) SetSecondary(node int) *Instance {
	n := *i
	n.Secondary = node
	return &n
}

// SetBoth returns a copy of i with both primary and secondary replaced in
// one step, used by moves that relocate both halves at once (Failover).
func (i *Instance) SetBoth(primary, secondary int) *Instance {
	n := *i
	n.Primary = primary
	n.Secondary = secondary
	return &n
}

// SetMovable returns a copy of i with its Movable flag replaced. The
// loader clears this for split-group instances (primary and secondary in
// different node groups), which no placement operation may relocate.
func (i *Instance) SetMovable(movable bool) *Instance {
	n := *i
	n.Movable = movable
	return &n
}

// HasSecondaryNode reports whether i currently carries a secondary node.
func (i *Instance) HasSecondaryNode() bool {
	return i.Secondary != NoNode
}

// IsRunning reports whether the instance's administrative state counts as
// up for utilisation/load purposes.
func (i *Instance) IsRunning() bool {
	return i.RunStatus == StatusRunning
}

// InstanceDown reports whether the instance is administratively or
// operationally down, the complement condition the balancer and allocator
// use to decide whether a move actually changes delivered load.
func (i *Instance) InstanceDown() bool {
	switch i.RunStatus {
	case StatusRunning, StatusErrorUp:
		return false
	default:
		return true
	}
}
