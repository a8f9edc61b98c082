// Package cluster holds the value types that make up a cluster snapshot —
// nodes, instances, groups, policies, and the dynamic-utilisation overlay —
// along with the smart constructors and derived-field recomputation that
// keep them internally consistent.
package cluster

// RSpec is a resource triple: vCPU count, memory, and disk, all in the
// base units used throughout the snapshot (vCPUs as a plain count, memory
// and disk in MiB).
type RSpec struct {
	CPU  int
	Mem  int64
	Disk int64
}

// Add returns the componentwise sum of two RSpecs.
func (r RSpec) Add(o RSpec) RSpec {
	return RSpec{CPU: r.CPU + o.CPU, Mem: r.Mem + o.Mem, Disk: r.Disk + o.Disk}
}

// Sub returns the componentwise difference of two RSpecs.
func (r RSpec) Sub(o RSpec) RSpec {
	return RSpec{CPU: r.CPU - o.CPU, Mem: r.Mem - o.Mem, Disk: r.Disk - o.Disk}
}
