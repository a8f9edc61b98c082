package cluster

import "github.com/yiannist/clusterfit/internal/clustererr"

// Node is a value-type snapshot of one hypervisor host: its total and free
// capacity, the instances it hosts as primary (PList) and secondary
// (SList), the sums and reservations derived from those lists, and the
// N+1 consistency flag those sums feed. Like Instance, a Node is never
// mutated in place; SetPri/SetSec/RemovePri/RemoveSec and the policy/
// offline setters all return a new value.
type Node struct {
	idx       int
	nameFQDN  string
	nameAlias string

	// Total capacity, as reported by the node itself.
	TMem      int64 // total memory, MiB
	TDsk      int64 // total disk, MiB
	TCpu      int   // physical CPU threads
	TSpindles int   // total spindles
	TDiskFree int64 // total free disk as reported by the node, MiB
	TMemNode  int64 // memory reserved for the node's own hypervisor/OS

	// Currently free capacity, updated by SetPri/SetSec.
	FMem      int64
	FDsk      int64
	FSpindles int
	XMem      int64 // memory used by processes outside Ganeti's accounting

	// Instance placement and the sums derived from it.
	PList []int
	SList []int
	PMem  int64
	PDsk  int64
	PCpu  int
	PRem  int64 // aggregate memory of secondary instances, pre-peers

	// Reserved memory and the per-peer breakdown it is computed from:
	// Peers[p] is the summed memory of this node's secondary instances
	// whose primary is node p, and RMem is the maximum such sum — the
	// memory this node must keep free to absorb the single worst-case
	// failover among its secondaries.
	RMem  int64
	Peers map[int]int64

	FailN1 bool

	Offline       bool
	Drained       bool
	VMCapable     bool
	MasterCapable bool

	Group int

	MDsk float64 // minimum free-disk ratio
	MCpu float64 // maximum vCPU-to-pCPU ratio

	Policy IPolicy
	ULoad  DynUtil

	Tags map[string]struct{}
}

func (n *Node) Idx() int       { return n.idx }
func (n *Node) SetIdx(idx int) { n.idx = idx }
func (n *Node) Name() string   { return n.nameFQDN }
func (n *Node) Alias() string  { return n.nameAlias }

// NewNode is the smart constructor: it seeds the free-capacity fields from
// the reported totals (less the node's own overhead and any externally
// used memory) and leaves the placement lists empty, ready for the
// loader's registration pass to populate via SetPri/SetSec.
func NewNode(fqdn string, tmem, tdsk int64, tcpu, tspindles int, tdiskfree, tmemnode, xmem int64) *Node {
	n := &Node{
		nameFQDN:      fqdn,
		nameAlias:     fqdn,
		TMem:          tmem,
		TDsk:          tdsk,
		TCpu:          tcpu,
		TSpindles:     tspindles,
		TDiskFree:     tdiskfree,
		TMemNode:      tmemnode,
		XMem:          xmem,
		VMCapable:     true,
		MasterCapable: true,
		MDsk:          0.25,
		MCpu:          4.0,
		Tags:          map[string]struct{}{},
		Peers:         map[int]int64{},
	}
	n.FMem = tmem - tmemnode - xmem
	n.FDsk = tdiskfree
	n.FSpindles = tspindles
	n.recomputeFailN1()
	return n
}

// SetAlias returns a copy of n with its alias replaced.
func (n *Node) SetAlias(alias string) *Node {
	c := *n
	c.nameAlias = alias
	return &c
}

// SetOffline returns a copy of n with Offline replaced, immediately
// recomputing the N+1 flag (an offline node can never be N+1 consistent
// as a placement target, so callers that want to exclude it should also
// check Offline directly rather than relying solely on FailN1).
func (n *Node) SetOffline(offline bool) *Node {
	c := *n
	c.Offline = offline
	c.recomputeFailN1()
	return &c
}

// SetMdsk returns a copy of n with its minimum free-disk ratio replaced.
func (n *Node) SetMdsk(mdsk float64) *Node {
	c := *n
	c.MDsk = mdsk
	return &c
}

// SetMcpu returns a copy of n with its maximum vCPU ratio replaced,
// immediately recomputing the N+1 flag since FailN1 depends on it.
func (n *Node) SetMcpu(mcpu float64) *Node {
	c := *n
	c.MCpu = mcpu
	c.recomputeFailN1()
	return &c
}

// SetPolicy returns a copy of n with its IPolicy replaced, recomputing the
// N+1 flag since the policy's VCPURatio also feeds the vCPU check.
func (n *Node) SetPolicy(p IPolicy) *Node {
	c := *n
	c.Policy = p
	c.recomputeFailN1()
	return &c
}

// vcpuRatio returns the node's current vCPU oversubscription ratio, or 0
// if it has no physical CPUs recorded (an input the loader should never
// actually produce, but division-by-zero must not panic).
func (n *Node) vcpuRatio() float64 {
	if n.TCpu == 0 {
		return 0
	}
	return float64(n.PCpu) / float64(n.TCpu)
}

// maxVcpuRatio returns the vCPU oversubscription ceiling to enforce:
// the group's IPolicy.VCPURatio takes precedence over the node's own
// MCpu, matching recomputeFailN1 — a node must never be accepted as a
// placement target under a looser ceiling than the one its own FailN1
// flag is computed from.
func (n *Node) maxVcpuRatio() float64 {
	if n.Policy.VCPURatio != 0 {
		return n.Policy.VCPURatio
	}
	return n.MCpu
}

func (n *Node) recomputeFailN1() {
	maxRatio := n.maxVcpuRatio()
	n.FailN1 = n.FMem < n.RMem ||
		n.FDsk < 0 ||
		n.FSpindles < 0 ||
		(maxRatio > 0 && n.vcpuRatio() > maxRatio)
}

// FailError wraps a clustererr.FailMode as an error, returned by the
// placement primitives below when adding an instance would leave the
// node in a state a move or allocation attempt must reject rather than
// silently accept.
type FailError struct {
	Mode clustererr.FailMode
}

func (e *FailError) Error() string { return "capacity check failed: " + e.Mode.String() }

// SetPri returns a copy of n with inst registered as a primary: it is
// appended to PList, its footprint is added to the p_mem/p_dsk/p_cpu
// sums and subtracted from free capacity, and the N+1 flag is
// recomputed. It returns a *FailError wrapping FailMem, FailDisk,
// FailCPU, or FailN1 if the node would go negative on that dimension or
// drop its free-disk ratio below m_dsk — the loader never expects this
// on well-formed input, but move application relies on it to reject an
// over-capacity placement.
func (n *Node) SetPri(inst *Instance) (*Node, error) {
	c := *n
	c.PList = append(append([]int(nil), n.PList...), inst.Idx())
	c.PMem += inst.Spec.Mem
	c.PDsk += inst.Spec.Disk
	c.PCpu += inst.Spec.RSpec.CPU
	c.FMem -= inst.Spec.Mem
	c.FDsk -= inst.Spec.Disk
	c.FSpindles -= int(inst.Spec.SpindleUse)
	c.recomputeFailN1()
	if c.FMem < 0 {
		return &c, &FailError{Mode: clustererr.FailMem}
	}
	if c.FDsk < 0 {
		return &c, &FailError{Mode: clustererr.FailDisk}
	}
	if c.FSpindles < 0 {
		return &c, &FailError{Mode: clustererr.FailDisk}
	}
	if maxRatio := c.maxVcpuRatio(); maxRatio > 0 && c.vcpuRatio() > maxRatio {
		return &c, &FailError{Mode: clustererr.FailCPU}
	}
	if c.TDsk > 0 && float64(c.FDsk) < float64(c.TDsk)*c.MDsk {
		return &c, &FailError{Mode: clustererr.FailN1}
	}
	return &c, nil
}

// RemovePri returns a copy of n with inst removed from PList and its
// footprint reversed out of the p_mem/p_dsk/p_cpu sums and free capacity.
func (n *Node) RemovePri(inst *Instance) *Node {
	c := *n
	c.PList = removeIdx(n.PList, inst.Idx())
	c.PMem -= inst.Spec.Mem
	c.PDsk -= inst.Spec.Disk
	c.PCpu -= inst.Spec.RSpec.CPU
	c.FMem += inst.Spec.Mem
	c.FDsk += inst.Spec.Disk
	c.FSpindles += int(inst.Spec.SpindleUse)
	c.recomputeFailN1()
	return &c
}

// SetSec returns a copy of n with inst registered as a secondary: it is
// appended to SList, its memory is added to p_rem (the pre-peers
// aggregate), and its disk/spindle footprint is reserved against free
// capacity (a DRBD secondary still consumes disk for the mirror even
// though it is not running). Peers and RMem are not recomputed here —
// callers must follow with BuildPeers once all secondaries are known.
// It returns a *FailError wrapping FailDisk if free disk or spindles
// would go negative, or FailN1 if the free-disk ratio would drop below
// m_dsk.
func (n *Node) SetSec(inst *Instance) (*Node, error) {
	c := *n
	c.SList = append(append([]int(nil), n.SList...), inst.Idx())
	c.PRem += inst.Spec.Mem
	c.FDsk -= inst.Spec.Disk
	c.FSpindles -= int(inst.Spec.SpindleUse)
	c.recomputeFailN1()
	if c.FDsk < 0 {
		return &c, &FailError{Mode: clustererr.FailDisk}
	}
	if c.FSpindles < 0 {
		return &c, &FailError{Mode: clustererr.FailDisk}
	}
	if c.TDsk > 0 && float64(c.FDsk) < float64(c.TDsk)*c.MDsk {
		return &c, &FailError{Mode: clustererr.FailN1}
	}
	return &c, nil
}

// RemoveSec returns a copy of n with inst removed from SList, reversing
// its contribution to p_rem and free disk/spindle capacity. Peers and
// RMem again need a follow-up BuildPeers call.
func (n *Node) RemoveSec(inst *Instance) *Node {
	c := *n
	c.SList = removeIdx(n.SList, inst.Idx())
	c.PRem -= inst.Spec.Mem
	c.FDsk += inst.Spec.Disk
	c.FSpindles += int(inst.Spec.SpindleUse)
	c.recomputeFailN1()
	return &c
}

// BuildPeers recomputes n's Peers map and RMem from scratch given the
// full instance lookup: for every secondary instance on n, its memory is
// added to Peers[primaryNodeIdx], and RMem becomes the largest such sum
// (or 0 if n hosts no secondaries). This must be called after any batch
// of SetSec/RemoveSec operations, and whenever an instance's Primary
// changes elsewhere in the cluster.
func (n *Node) BuildPeers(lookup func(idx int) (*Instance, bool)) *Node {
	c := *n
	peers := map[int]int64{}
	var max int64
	for _, idx := range c.SList {
		inst, ok := lookup(idx)
		if !ok {
			continue
		}
		peers[inst.Primary] += inst.Spec.Mem
		if peers[inst.Primary] > max {
			max = peers[inst.Primary]
		}
	}
	c.Peers = peers
	c.RMem = max
	c.recomputeFailN1()
	return &c
}

func removeIdx(list []int, idx int) []int {
	out := make([]int, 0, len(list))
	for _, v := range list {
		if v != idx {
			out = append(out, v)
		}
	}
	return out
}
