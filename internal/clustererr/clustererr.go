// Package clustererr defines the closed failure taxonomy and the
// owner-prefixed diagnostic type shared by the placement core.
package clustererr

import "fmt"

// FailMode enumerates the reasons a move or allocation attempt can fail.
// The set is closed and total: allocators rely on being able to aggregate
// every member into their per-reason statistics.
type FailMode int

const (
	FailMem FailMode = iota
	FailDisk
	FailCPU
	FailN1
	FailTags
)

func (f FailMode) String() string {
	switch f {
	case FailMem:
		return "FailMem"
	case FailDisk:
		return "FailDisk"
	case FailCPU:
		return "FailCPU"
	case FailN1:
		return "FailN1"
	case FailTags:
		return "FailTags"
	default:
		return "FailUnknown"
	}
}

// AllFailModes lists every member of the enum, in a fixed order, for
// allocators that need to report a zero count for reasons that did not
// occur.
var AllFailModes = []FailMode{FailMem, FailDisk, FailCPU, FailN1, FailTags}

// FailStats aggregates, per FailMode, how many allocation attempts failed
// for that reason.
type FailStats map[FailMode]int

// Add increments the count for mode.
func (s FailStats) Add(mode FailMode) {
	s[mode]++
}

// Total returns the sum of all counts.
func (s FailStats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Diagnostic is a textual failure annotated with the owning component, so
// that "--disk option: unknown unit 'q'" style messages can be produced
// uniformly across the CLI, loader, and parsers.
type Diagnostic struct {
	Owner string
	Msg   string
}

func (d *Diagnostic) Error() string {
	if d.Owner == "" {
		return d.Msg
	}
	return fmt.Sprintf("%s: %s", d.Owner, d.Msg)
}

// New builds a Diagnostic.
func New(owner, format string, args ...any) *Diagnostic {
	return &Diagnostic{Owner: owner, Msg: fmt.Sprintf(format, args...)}
}
