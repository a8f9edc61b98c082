package format

import (
	"encoding/json"
	"io"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
)

// JSONFormatter renders each report surface as an indented JSON array,
// mirroring the teacher's JSONReporter (internal/report/json.go):
// build a plain serialisable value, then json.NewEncoder with a 2-space
// indent.
type JSONFormatter struct{}

type nodeRow struct {
	Fields         map[string]string `json:"fields"`
	MonthlyCostUSD *float64          `json:"monthly_cost_usd,omitempty"`
}

func (f *JSONFormatter) Nodes(w io.Writer, cd *cluster.ClusterData, fields []NodeField, costs map[int]cloudnode.NodeCost) error {
	groupName := groupNamer(cd)
	rows := make([]nodeRow, 0, cd.Nodes.Size())
	for _, idx := range cd.Nodes.Keys() {
		n := cd.Nodes.MustFind(idx)
		row := nodeRow{Fields: make(map[string]string, len(fields))}
		for _, fl := range fields {
			row.Fields[string(fl)] = NodeValue(n, fl, groupName)
		}
		if nc, ok := costs[idx]; ok {
			cost := nc.MonthlyCostUSD
			row.MonthlyCostUSD = &cost
		}
		rows = append(rows, row)
	}
	return encode(w, rows)
}

type instanceRow struct {
	Name         string `json:"name"`
	Mem          int64  `json:"mem"`
	Disk         int64  `json:"disk"`
	VCPUs        int    `json:"vcpus"`
	Status       string `json:"status"`
	Primary      string `json:"primary"`
	Secondary    string `json:"secondary"`
	DiskTemplate string `json:"disk_template"`
}

func (f *JSONFormatter) Instances(w io.Writer, cd *cluster.ClusterData) error {
	nodeName := nodeNamer(cd)
	rows := make([]instanceRow, 0, cd.Instances.Size())
	for _, idx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(idx)
		rows = append(rows, instanceRow{
			Name:         inst.Alias(),
			Mem:          inst.Spec.Mem,
			Disk:         inst.Spec.Disk,
			VCPUs:        inst.Spec.CPU,
			Status:       string(inst.RunStatus),
			Primary:      nodeName(inst.Primary),
			Secondary:    nodeName(inst.Secondary),
			DiskTemplate: string(inst.DiskTemplate),
		})
	}
	return encode(w, rows)
}

type placementRow struct {
	Instance     string  `json:"instance"`
	OldPrimary   string  `json:"old_primary"`
	OldSecondary string  `json:"old_secondary"`
	NewPrimary   string  `json:"new_primary"`
	NewSecondary string  `json:"new_secondary"`
	Score        float64 `json:"score"`
	Action       string  `json:"action"`
}

func (f *JSONFormatter) Placements(w io.Writer, cd *cluster.ClusterData, placements []balance.Placement) error {
	nodeName := nodeNamer(cd)
	rows := make([]placementRow, 0, len(placements))
	for _, p := range placements {
		name := ""
		if inst, ok := cd.Instances.Find(p.InstanceIdx); ok {
			name = inst.Alias()
		}
		rows = append(rows, placementRow{
			Instance:     name,
			OldPrimary:   nodeName(p.OldPrimary),
			OldSecondary: nodeName(p.OldSecondary),
			NewPrimary:   nodeName(p.NewPrimary),
			NewSecondary: nodeName(p.NewSecondary),
			Score:        p.Score,
			Action:       actionLetters(p.Move, nodeName),
		})
	}
	return encode(w, rows)
}

type tierRow struct {
	Name         string `json:"name"`
	Mem          int64  `json:"mem"`
	Disk         int64  `json:"disk"`
	VCPUs        int    `json:"vcpus"`
	DiskTemplate string `json:"disk_template"`
	Count        int    `json:"count"`
}

func (f *JSONFormatter) Tiers(w io.Writer, tiers []allocate.TierResult) error {
	rows := make([]tierRow, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, tierRow{
			Name:         t.Shape.Name,
			Mem:          t.Shape.Spec.Mem,
			Disk:         t.Shape.Spec.Disk,
			VCPUs:        t.Shape.Spec.CPU,
			DiskTemplate: string(t.Shape.DiskTemplate),
			Count:        t.Count,
		})
	}
	return encode(w, rows)
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
