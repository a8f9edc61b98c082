package format

import (
	"fmt"
	"io"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/move"
)

// ScriptFormatter renders a placement trajectory as a machine-readable
// shell script: one gnt-instance command per step, jobsets separated by
// a literal "echo step <n>" line (§4.9) so an executor can tell which
// commands are safe to run in parallel.
type ScriptFormatter struct{}

func (f *ScriptFormatter) Nodes(w io.Writer, cd *cluster.ClusterData, fields []NodeField, costs map[int]cloudnode.NodeCost) error {
	return clustererr.New("format", "script format does not support node tables")
}

func (f *ScriptFormatter) Instances(w io.Writer, cd *cluster.ClusterData) error {
	return clustererr.New("format", "script format does not support instance tables")
}

func (f *ScriptFormatter) Tiers(w io.Writer, tiers []allocate.TierResult) error {
	return clustererr.New("format", "script format does not support tiered reports")
}

func (f *ScriptFormatter) Placements(w io.Writer, cd *cluster.ClusterData, placements []balance.Placement) error {
	ew := &errWriter{w: w}
	nodeName := nodeNamer(cd)
	jobsets := balance.Jobsets(placements)

	ew.printf("#!/bin/sh\nset -e\n")
	for step, jobset := range jobsets {
		ew.printf("echo step %d\n", step+1)
		for _, p := range jobset {
			name := fmt.Sprintf("instance-%d", p.InstanceIdx)
			if inst, ok := cd.Instances.Find(p.InstanceIdx); ok {
				name = inst.Alias()
			}
			for _, cmd := range commandsFor(name, p.Move, nodeName) {
				ew.printf("%s\n", cmd)
			}
		}
	}
	return ew.err
}

// commandsFor renders the gnt-instance invocation(s) that realize move m,
// composing the primitive migrate/replace-disks steps the same way
// resolveTargets (internal/move/move.go) composes their resulting
// (primary, secondary) pair.
func commandsFor(instance string, m move.Move, nodeName func(int) string) []string {
	migrate := fmt.Sprintf("gnt-instance migrate %s", instance)
	replace := func(node int) string {
		return fmt.Sprintf("gnt-instance replace-disks -n %s %s", nodeName(node), instance)
	}
	failoverToAny := func(node int) string {
		return fmt.Sprintf("gnt-instance failover -n %s %s", nodeName(node), instance)
	}

	switch m.Variant {
	case move.Failover:
		return []string{migrate}
	case move.FailoverToAny:
		return []string{failoverToAny(m.Target)}
	case move.ReplaceSecondary:
		return []string{replace(m.Target)}
	case move.ReplacePrimary:
		return []string{migrate, replace(m.Target), migrate}
	case move.ReplaceAndFailover:
		return []string{replace(m.Target), migrate}
	case move.FailoverAndReplace:
		return []string{migrate, replace(m.Target)}
	default:
		return nil
	}
}
