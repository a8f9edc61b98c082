package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
)

// errWriter accumulates the first write error across a sequence of
// printf calls so callers don't have to check one at a time.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// TableFormatter renders fixed-width text tables.
type TableFormatter struct{}

func (f *TableFormatter) Nodes(w io.Writer, cd *cluster.ClusterData, fields []NodeField, costs map[int]cloudnode.NodeCost) error {
	ew := &errWriter{w: w}
	groupName := groupNamer(cd)
	ncols := len(fields)
	if costs != nil {
		ncols++
	}

	var header strings.Builder
	for _, fl := range fields {
		header.WriteString(fmt.Sprintf("%-14s", NodeHeader(fl)))
	}
	if costs != nil {
		header.WriteString(fmt.Sprintf("%-14s", "$/mo"))
	}
	ew.printf("%s\n", header.String())
	ew.printf("%s\n", strings.Repeat("-", 14*ncols))

	for _, idx := range cd.Nodes.Keys() {
		n := cd.Nodes.MustFind(idx)
		var row strings.Builder
		for _, fl := range fields {
			row.WriteString(fmt.Sprintf("%-14s", NodeValue(n, fl, groupName)))
		}
		if costs != nil {
			row.WriteString(fmt.Sprintf("%-14s", costCell(costs, idx)))
		}
		ew.printf("%s\n", row.String())
	}
	return ew.err
}

// costCell renders the $/mo column for node idx: "-" when costs carries
// no entry for it (untagged node, or a lookup that failed).
func costCell(costs map[int]cloudnode.NodeCost, idx int) string {
	nc, ok := costs[idx]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", nc.MonthlyCostUSD)
}

func (f *TableFormatter) Instances(w io.Writer, cd *cluster.ClusterData) error {
	ew := &errWriter{w: w}
	nodeName := nodeNamer(cd)

	ew.printf("%-20s %10s %10s %6s %-10s %-10s %-10s %s\n",
		"Name", "Mem", "Disk", "VCPUs", "Status", "Primary", "Secondary", "Template")
	for _, idx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(idx)
		ew.printf("%-20s %10d %10d %6d %-10s %-10s %-10s %s\n",
			inst.Alias(), inst.Spec.Mem, inst.Spec.Disk, inst.Spec.CPU,
			inst.RunStatus, nodeName(inst.Primary), nodeName(inst.Secondary),
			inst.DiskTemplate)
	}
	return ew.err
}

func (f *TableFormatter) Placements(w io.Writer, cd *cluster.ClusterData, placements []balance.Placement) error {
	ew := &errWriter{w: w}
	nodeName := nodeNamer(cd)

	ew.printf("%-20s %-10s %-10s %-10s %-10s %8s %-10s\n",
		"Instance", "OldPri", "OldSec", "NewPri", "NewSec", "Score", "Action")
	for _, p := range placements {
		inst, ok := cd.Instances.Find(p.InstanceIdx)
		name := fmt.Sprintf("#%d", p.InstanceIdx)
		if ok {
			name = inst.Alias()
		}
		ew.printf("%-20s %-10s %-10s %-10s %-10s %8.2f %-10s\n",
			name, nodeName(p.OldPrimary), nodeName(p.OldSecondary),
			nodeName(p.NewPrimary), nodeName(p.NewSecondary), p.Score,
			actionLetters(p.Move, nodeName))
	}
	return ew.err
}

func (f *TableFormatter) Tiers(w io.Writer, tiers []allocate.TierResult) error {
	ew := &errWriter{w: w}
	ew.printf("%-16s %10s %10s %6s %-10s %6s\n", "Shape", "Mem", "Disk", "VCPUs", "Template", "Count")

	total := 0
	for _, t := range tiers {
		ew.printf("%-16s %10d %10d %6d %-10s %6d\n",
			t.Shape.Name, t.Shape.Spec.Mem, t.Shape.Spec.Disk, t.Shape.Spec.CPU,
			t.Shape.DiskTemplate, t.Count)
		total += t.Count
	}
	ew.printf("%-16s %10s %10s %6s %-10s %6d\n", "TOTAL", "", "", "", "", total)
	return ew.err
}
