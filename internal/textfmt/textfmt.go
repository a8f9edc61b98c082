// Package textfmt reads and writes the pipe-separated, blank-line
// delimited cluster-state text format (§6): five sections — groups,
// nodes, instances, cluster tags, and ipolicies — in that fixed order.
// Read and Write are exact inverses of one another (P3): formatting a
// parsed Document reproduces the same fields the original text carried,
// column for column. Grounded on the teacher's TableReporter
// (internal/report/table.go) for the "one errWriter-driven printf per
// row" output shape, reversed here into a bufio.Scanner-driven parser.
package textfmt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/loader"
)

// GroupRecord is one line of the Groups section.
type GroupRecord struct {
	Name        string
	UUID        string
	AllocPolicy string
	Tags        []string
	Networks    []string
}

// NodeRecord is one line of the Nodes section. OfflineRole is one of
// "Y" (offline), "N" (online), "M" (master, online). FMem/FDsk/FSpindles
// are the node's self-reported current free capacity. FMem and FDsk reach
// the loader as a pre-registration baseline (to be depleted by this same
// snapshot's own instances during Merge), not as a post-hoc observation,
// so there is no two-pass reconciliation against instance placement.
// FSpindles is kept for the round trip only and is not passed to the
// loader.
type NodeRecord struct {
	Name        string
	TMem        int64
	MemNode     int64
	FMem        int64
	TDsk        int64
	FDsk        int64
	TCpu        int
	OfflineRole string
	GroupUUID   string
	TSpindles   int
	Tags        []string
	ExclStorage bool
	FSpindles   int
	NVCPUs      int
	CPUSpeed    float64
}

// InstanceRecord is one line of the Instances section.
type InstanceRecord struct {
	Name          string
	Mem           int64
	Disk          int64
	VCPUs         int
	Status        string
	AutoBalance   bool
	PrimaryNode   string
	SecondaryNode string
	DiskTemplate  string
	Tags          []string
	SpindleUse    float64
	ActualSpindle int
}

// IPolicyRecord is one line of the Ipolicies section. Scope is either
// "cluster" or "group:<uuid>".
type IPolicyRecord struct {
	Scope         string
	Min, Std, Max SpecRecord
	DiskTemplates []string
	VCPURatio     float64
	SpindleRatio  float64
}

// SpecRecord mirrors cluster.ISpec's six fields in the fixed,
// comma-separated order mem,disk,cpu,disk_count,nic_count,spindle_use.
type SpecRecord struct {
	Mem, Disk             int64
	CPU                   int
	DiskCount, NicCount   int
	SpindleUse            float64
}

// Document is the full parsed text-format snapshot, section by section,
// in file order.
type Document struct {
	Groups      []GroupRecord
	Nodes       []NodeRecord
	Instances   []InstanceRecord
	ClusterTags []string
	IPolicies   []IPolicyRecord
}

// Read parses the five sections in order, each separated by a blank
// line. A section with no lines (the boundary reached immediately) is
// left empty rather than erroring, since cluster tags in particular are
// commonly absent.
func Read(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	sections, err := splitSections(scanner)
	if err != nil {
		return nil, err
	}
	if len(sections) < 5 {
		return nil, clustererr.New("textfmt", "expected 5 sections (groups, nodes, instances, cluster tags, ipolicies), got %d", len(sections))
	}

	doc := &Document{}
	for _, line := range sections[0] {
		gr, err := parseGroupLine(line)
		if err != nil {
			return nil, err
		}
		doc.Groups = append(doc.Groups, gr)
	}
	for _, line := range sections[1] {
		nr, err := parseNodeLine(line)
		if err != nil {
			return nil, err
		}
		doc.Nodes = append(doc.Nodes, nr)
	}
	for _, line := range sections[2] {
		ir, err := parseInstanceLine(line)
		if err != nil {
			return nil, err
		}
		doc.Instances = append(doc.Instances, ir)
	}
	doc.ClusterTags = append(doc.ClusterTags, sections[3]...)
	for _, line := range sections[4] {
		pr, err := parseIPolicyLine(line)
		if err != nil {
			return nil, err
		}
		doc.IPolicies = append(doc.IPolicies, pr)
	}
	return doc, nil
}

// splitSections scans lines, grouping consecutive non-blank lines into
// sections. Every blank line ends the current section, so two blank
// lines in a row leave an empty section between them; the lines after
// the last blank line form the final section.
func splitSections(scanner *bufio.Scanner) ([][]string, error) {
	var sections [][]string
	var current []string
	flush := func() {
		sections = append(sections, current)
		current = nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, clustererr.New("textfmt", "reading input: %v", err)
	}
	return sections, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func fields(line string, n int) ([]string, error) {
	parts := strings.Split(line, "|")
	if len(parts) != n {
		return nil, clustererr.New("textfmt", "expected %d fields, got %d in %q", n, len(parts), line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func parseGroupLine(line string) (GroupRecord, error) {
	f, err := fields(line, 5)
	if err != nil {
		return GroupRecord{}, err
	}
	return GroupRecord{
		Name:        f[0],
		UUID:        f[1],
		AllocPolicy: f[2],
		Tags:        splitCSV(f[3]),
		Networks:    splitCSV(f[4]),
	}, nil
}

func parseNodeLine(line string) (NodeRecord, error) {
	f, err := fields(line, 15)
	if err != nil {
		return NodeRecord{}, err
	}
	var nr NodeRecord
	nr.Name = f[0]
	if nr.TMem, err = strconv.ParseInt(f[1], 10, 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad t_mem: %v", nr.Name, err)
	}
	if nr.MemNode, err = strconv.ParseInt(f[2], 10, 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad mem_node: %v", nr.Name, err)
	}
	if nr.FMem, err = strconv.ParseInt(f[3], 10, 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad f_mem: %v", nr.Name, err)
	}
	if nr.TDsk, err = strconv.ParseInt(f[4], 10, 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad t_dsk: %v", nr.Name, err)
	}
	if nr.FDsk, err = strconv.ParseInt(f[5], 10, 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad f_dsk: %v", nr.Name, err)
	}
	if nr.TCpu, err = strconv.Atoi(f[6]); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad t_cpu: %v", nr.Name, err)
	}
	nr.OfflineRole = f[7]
	if nr.OfflineRole != "Y" && nr.OfflineRole != "N" && nr.OfflineRole != "M" {
		return nr, clustererr.New("textfmt", "node %q: offline_role must be Y/N/M, got %q", nr.Name, nr.OfflineRole)
	}
	nr.GroupUUID = f[8]
	if nr.TSpindles, err = strconv.Atoi(f[9]); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad t_spindles: %v", nr.Name, err)
	}
	nr.Tags = splitCSV(f[10])
	nr.ExclStorage = f[11] == "Y"
	if nr.FSpindles, err = strconv.Atoi(f[12]); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad f_spindles: %v", nr.Name, err)
	}
	if nr.NVCPUs, err = strconv.Atoi(f[13]); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad n_vcpus: %v", nr.Name, err)
	}
	if nr.CPUSpeed, err = strconv.ParseFloat(f[14], 64); err != nil {
		return nr, clustererr.New("textfmt", "node %q: bad cpu_speed: %v", nr.Name, err)
	}
	return nr, nil
}

func parseInstanceLine(line string) (InstanceRecord, error) {
	f, err := fields(line, 12)
	if err != nil {
		return InstanceRecord{}, err
	}
	var ir InstanceRecord
	ir.Name = f[0]
	if ir.Mem, err = strconv.ParseInt(f[1], 10, 64); err != nil {
		return ir, clustererr.New("textfmt", "instance %q: bad mem: %v", ir.Name, err)
	}
	if ir.Disk, err = strconv.ParseInt(f[2], 10, 64); err != nil {
		return ir, clustererr.New("textfmt", "instance %q: bad disk: %v", ir.Name, err)
	}
	if ir.VCPUs, err = strconv.Atoi(f[3]); err != nil {
		return ir, clustererr.New("textfmt", "instance %q: bad vcpus: %v", ir.Name, err)
	}
	ir.Status = f[4]
	ir.AutoBalance = f[5] == "Y" || strings.EqualFold(f[5], "true")
	ir.PrimaryNode = f[6]
	ir.SecondaryNode = f[7]
	if ir.SecondaryNode == "-" {
		ir.SecondaryNode = ""
	}
	ir.DiskTemplate = f[8]
	ir.Tags = splitCSV(f[9])
	if ir.SpindleUse, err = strconv.ParseFloat(f[10], 64); err != nil {
		return ir, clustererr.New("textfmt", "instance %q: bad spindle_use: %v", ir.Name, err)
	}
	if ir.ActualSpindle, err = strconv.Atoi(f[11]); err != nil {
		return ir, clustererr.New("textfmt", "instance %q: bad actual_spindles: %v", ir.Name, err)
	}
	return ir, nil
}

func parseSpec(s string) (SpecRecord, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return SpecRecord{}, clustererr.New("textfmt", "expected 6 comma-separated spec fields, got %d in %q", len(parts), s)
	}
	var sr SpecRecord
	var err error
	if sr.Mem, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64); err != nil {
		return sr, clustererr.New("textfmt", "bad spec mem: %v", err)
	}
	if sr.Disk, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err != nil {
		return sr, clustererr.New("textfmt", "bad spec disk: %v", err)
	}
	if sr.CPU, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return sr, clustererr.New("textfmt", "bad spec cpu: %v", err)
	}
	if sr.DiskCount, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
		return sr, clustererr.New("textfmt", "bad spec disk_count: %v", err)
	}
	if sr.NicCount, err = strconv.Atoi(strings.TrimSpace(parts[4])); err != nil {
		return sr, clustererr.New("textfmt", "bad spec nic_count: %v", err)
	}
	if sr.SpindleUse, err = strconv.ParseFloat(strings.TrimSpace(parts[5]), 64); err != nil {
		return sr, clustererr.New("textfmt", "bad spec spindle_use: %v", err)
	}
	return sr, nil
}

func parseIPolicyLine(line string) (IPolicyRecord, error) {
	f, err := fields(line, 7)
	if err != nil {
		return IPolicyRecord{}, err
	}
	var pr IPolicyRecord
	pr.Scope = f[0]
	if pr.Min, err = parseSpec(f[1]); err != nil {
		return pr, err
	}
	if pr.Std, err = parseSpec(f[2]); err != nil {
		return pr, err
	}
	if pr.Max, err = parseSpec(f[3]); err != nil {
		return pr, err
	}
	pr.DiskTemplates = splitCSV(f[4])
	if pr.VCPURatio, err = strconv.ParseFloat(f[5], 64); err != nil {
		return pr, clustererr.New("textfmt", "bad vcpu_ratio: %v", err)
	}
	if pr.SpindleRatio, err = strconv.ParseFloat(f[6], 64); err != nil {
		return pr, clustererr.New("textfmt", "bad spindle_ratio: %v", err)
	}
	return pr, nil
}

// Write renders doc back to the same five-section, pipe-separated,
// blank-line-delimited text format Read parses, field for field.
func Write(w io.Writer, doc *Document) error {
	ew := &lineWriter{w: w}

	for _, g := range doc.Groups {
		ew.printf("%s|%s|%s|%s|%s\n", g.Name, g.UUID, g.AllocPolicy, strings.Join(g.Tags, ","), strings.Join(g.Networks, ","))
	}
	ew.printf("\n")

	for _, n := range doc.Nodes {
		ew.printf("%s|%d|%d|%d|%d|%d|%d|%s|%s|%d|%s|%s|%d|%d|%s\n",
			n.Name, n.TMem, n.MemNode, n.FMem, n.TDsk, n.FDsk, n.TCpu, n.OfflineRole,
			n.GroupUUID, n.TSpindles, strings.Join(n.Tags, ","), yn(n.ExclStorage),
			n.FSpindles, n.NVCPUs, formatFloat(n.CPUSpeed))
	}
	ew.printf("\n")

	for _, i := range doc.Instances {
		ew.printf("%s|%d|%d|%d|%s|%s|%s|%s|%s|%s|%s|%d\n",
			i.Name, i.Mem, i.Disk, i.VCPUs, i.Status, yn(i.AutoBalance), i.PrimaryNode,
			i.SecondaryNode, i.DiskTemplate, strings.Join(i.Tags, ","), formatFloat(i.SpindleUse),
			i.ActualSpindle)
	}
	ew.printf("\n")

	for _, t := range doc.ClusterTags {
		ew.printf("%s\n", t)
	}
	ew.printf("\n")

	for _, p := range doc.IPolicies {
		ew.printf("%s|%s|%s|%s|%s|%s|%s\n",
			p.Scope, formatSpec(p.Min), formatSpec(p.Std), formatSpec(p.Max),
			strings.Join(p.DiskTemplates, ","), formatFloat(p.VCPURatio), formatFloat(p.SpindleRatio))
	}

	return ew.err
}

func formatSpec(s SpecRecord) string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%s", s.Mem, s.Disk, s.CPU, s.DiskCount, s.NicCount, formatFloat(s.SpindleUse))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

type lineWriter struct {
	w   io.Writer
	err error
}

func (lw *lineWriter) printf(format string, args ...interface{}) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format, args...)
}

// ToRawCluster converts a parsed Document into the name-keyed
// loader.RawCluster the loader's Merge consumes. Per-node f_mem/f_dsk/
// f_spindles are taken as the pre-registration baseline (see NodeRecord
// doc): x_mem is solved so that cluster.NewNode's FMem seed reproduces
// FMem exactly, and f_dsk feeds straight through as the tdiskfree
// constructor argument. The tspindles argument is t_spindles; f_spindles
// is not passed on (cluster.Node has no separate before/after-instances
// spindle total).
// loader.buildNodes resolves RawNode.Group by the group's Name (not its
// UUID), so a node's group_uuid column is translated to the matching
// group's name here before reaching the loader.
func ToRawCluster(doc *Document) loader.RawCluster {
	var raw loader.RawCluster

	for _, g := range doc.Groups {
		raw.Groups = append(raw.Groups, loader.RawGroup{
			Name:        g.Name,
			UUID:        g.UUID,
			AllocPolicy: cluster.AllocPolicy(g.AllocPolicy),
			Networks:    g.Networks,
			Tags:        g.Tags,
		})
	}

	groupNameByUUID := make(map[string]string, len(doc.Groups))
	for _, g := range doc.Groups {
		groupNameByUUID[g.UUID] = g.Name
	}

	for _, n := range doc.Nodes {
		raw.Nodes = append(raw.Nodes, loader.RawNode{
			Name:          n.Name,
			TMem:          n.TMem,
			TDsk:          n.TDsk,
			TCpu:          n.TCpu,
			TSpindles:     n.TSpindles,
			TDiskFree:     n.FDsk,
			TMemNode:      n.MemNode,
			XMem:          n.TMem - n.MemNode - n.FMem,
			Offline:       n.OfflineRole == "Y",
			MasterCapable: n.OfflineRole != "Y",
			VMCapable:     n.OfflineRole != "Y",
			Group:         groupNameByUUID[n.GroupUUID],
			Tags:          n.Tags,
		})
	}

	for _, i := range doc.Instances {
		raw.Instances = append(raw.Instances, loader.RawInstance{
			Name: i.Name,
			Spec: cluster.ISpec{
				RSpec:      cluster.RSpec{CPU: i.VCPUs, Mem: i.Mem, Disk: i.Disk},
				SpindleUse: i.SpindleUse,
			},
			DiskTemplate:  cluster.DiskTemplate(i.DiskTemplate),
			PrimaryNode:   i.PrimaryNode,
			SecondaryNode: i.SecondaryNode,
			RunStatus:     cluster.RunStatus(i.Status),
			AutoBalance:   i.AutoBalance,
			Tags:          i.Tags,
		})
	}

	raw.ClusterTags = doc.ClusterTags

	for _, p := range doc.IPolicies {
		if p.Scope == "cluster" {
			raw.IPolicy = specRecordsToIPolicy(p)
		}
	}
	// The loader's applyGroupPolicies step (internal/loader/merge.go)
	// overwrites every node's policy with its group's Policy field
	// unconditionally, so a group with no ipolicy line of its own must
	// still default to the cluster-wide policy rather than a zero
	// value.
	for idx := range raw.Groups {
		raw.Groups[idx].Policy = raw.IPolicy
	}
	for _, p := range doc.IPolicies {
		if !strings.HasPrefix(p.Scope, "group:") {
			continue
		}
		uuid := strings.TrimPrefix(p.Scope, "group:")
		policy := specRecordsToIPolicy(p)
		for idx := range raw.Groups {
			if raw.Groups[idx].UUID == uuid {
				raw.Groups[idx].Policy = policy
			}
		}
	}

	return raw
}

func specRecordsToIPolicy(p IPolicyRecord) cluster.IPolicy {
	templates := map[cluster.DiskTemplate]bool{}
	for _, t := range p.DiskTemplates {
		templates[cluster.DiskTemplate(t)] = true
	}
	toISpec := func(s SpecRecord) cluster.ISpec {
		return cluster.ISpec{
			RSpec:      cluster.RSpec{CPU: s.CPU, Mem: s.Mem, Disk: s.Disk},
			DiskCount:  s.DiskCount,
			NicCount:   s.NicCount,
			SpindleUse: s.SpindleUse,
		}
	}
	return cluster.IPolicy{
		Min:           toISpec(p.Min),
		Std:           toISpec(p.Std),
		Max:           toISpec(p.Max),
		DiskTemplates: templates,
		VCPURatio:     p.VCPURatio,
		SpindleRatio:  p.SpindleRatio,
	}
}

// FromClusterData renders the loader's post-Merge ClusterData back into
// a Document — the write half of the round trip used by --save-cluster.
func FromClusterData(cd *cluster.ClusterData) *Document {
	doc := &Document{}

	for _, idx := range cd.Groups.Keys() {
		g := cd.Groups.MustFind(idx)
		doc.Groups = append(doc.Groups, GroupRecord{
			Name:        g.Name(),
			UUID:        g.UUID(),
			AllocPolicy: string(g.AllocPolicy),
			Tags:        keys(g.Tags),
			Networks:    g.Networks,
		})
	}

	groupUUID := func(idx int) string {
		g, ok := cd.Groups.Find(idx)
		if !ok {
			return ""
		}
		return g.UUID()
	}

	for _, idx := range cd.Nodes.Keys() {
		n := cd.Nodes.MustFind(idx)
		role := "N"
		if n.Offline {
			role = "Y"
		} else if n.MasterCapable && !n.VMCapable {
			role = "M"
		}
		doc.Nodes = append(doc.Nodes, NodeRecord{
			Name:        n.Name(),
			TMem:        n.TMem,
			MemNode:     n.TMem - n.FMem - n.RMem, // best-effort inverse of the seed formula
			FMem:        n.FMem,
			TDsk:        n.TDsk,
			FDsk:        n.FDsk,
			TCpu:        n.TCpu,
			OfflineRole: role,
			GroupUUID:   groupUUID(n.Group),
			TSpindles:   n.TSpindles,
			Tags:        keys(n.Tags),
			FSpindles:   n.FSpindles,
			NVCPUs:      n.TCpu,
			CPUSpeed:    1.0,
		})
	}

	nodeName := func(idx int) string {
		if idx == cluster.NoNode {
			return ""
		}
		n, ok := cd.Nodes.Find(idx)
		if !ok {
			return ""
		}
		return n.Name()
	}

	for _, idx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(idx)
		doc.Instances = append(doc.Instances, InstanceRecord{
			Name:          inst.Name(),
			Mem:           inst.Spec.Mem,
			Disk:          inst.Spec.Disk,
			VCPUs:         inst.Spec.CPU,
			Status:        string(inst.RunStatus),
			AutoBalance:   inst.AutoBalance,
			PrimaryNode:   nodeName(inst.Primary),
			SecondaryNode: nodeName(inst.Secondary),
			DiskTemplate:  string(inst.DiskTemplate),
			Tags:          keys(inst.Tags),
			SpindleUse:    inst.Spec.SpindleUse,
		})
	}

	doc.ClusterTags = keys(cd.ClusterTags)

	doc.IPolicies = append(doc.IPolicies, IPolicyRecord{
		Scope:         "cluster",
		Min:           fromISpec(cd.IPolicy.Min),
		Std:           fromISpec(cd.IPolicy.Std),
		Max:           fromISpec(cd.IPolicy.Max),
		DiskTemplates: templateNames(cd.IPolicy.DiskTemplates),
		VCPURatio:     cd.IPolicy.VCPURatio,
		SpindleRatio:  cd.IPolicy.SpindleRatio,
	})

	return doc
}

func fromISpec(s cluster.ISpec) SpecRecord {
	return SpecRecord{Mem: s.Mem, Disk: s.Disk, CPU: s.CPU, DiskCount: s.DiskCount, NicCount: s.NicCount, SpindleUse: s.SpindleUse}
}

func templateNames(templates map[cluster.DiskTemplate]bool) []string {
	out := make([]string, 0, len(templates))
	for t := range templates {
		out = append(out, string(t))
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
