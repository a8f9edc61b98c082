package cluster

// ISpec is an RSpec plus the three counters that only make sense at
// instance granularity: disk count, NIC count, and spindle use. A policy's
// Min/Std/Max bounds and an instance's actual footprint are both ISpecs,
// which is what lets SpecMatches compare them field by field.
type ISpec struct {
	RSpec
	DiskCount  int
	NicCount   int
	SpindleUse float64
}

// SpecMatches reports whether spec falls within policy's [Min, Max] bounds
// on every dimension: CPU, memory, disk, disk count, NIC count, and
// spindle use.
func SpecMatches(policy IPolicy, spec ISpec) bool {
	return inRange(spec.CPU, policy.Min.CPU, policy.Max.CPU) &&
		inRangeI64(spec.Mem, policy.Min.Mem, policy.Max.Mem) &&
		inRangeI64(spec.Disk, policy.Min.Disk, policy.Max.Disk) &&
		inRange(spec.DiskCount, policy.Min.DiskCount, policy.Max.DiskCount) &&
		inRange(spec.NicCount, policy.Min.NicCount, policy.Max.NicCount) &&
		inRangeF(spec.SpindleUse, policy.Min.SpindleUse, policy.Max.SpindleUse)
}

func inRange(v, lo, hi int) bool { return v >= lo && v <= hi }

func inRangeI64(v, lo, hi int64) bool { return v >= lo && v <= hi }

func inRangeF(v, lo, hi float64) bool { return v >= lo && v <= hi }
