package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yiannist/clusterfit/internal/cluster"
)

// NodeField names one column of the node table. The table's column order
// is fixed by DefaultNodeFields; a field spec prefixed with "+" extends
// that default list instead of replacing it (§4.9).
type NodeField string

const (
	FieldName      NodeField = "name"
	FieldAlias     NodeField = "alias"
	FieldGroup     NodeField = "group"
	FieldTMem      NodeField = "tmem"
	FieldFMem      NodeField = "fmem"
	FieldTDsk      NodeField = "tdsk"
	FieldFDsk      NodeField = "fdsk"
	FieldTCpu      NodeField = "tcpu"
	FieldPinst     NodeField = "pinst"
	FieldSinst     NodeField = "sinst"
	FieldFreeMem   NodeField = "free_mem_ratio"
	FieldFreeDisk  NodeField = "free_disk_ratio"
	FieldVCPU      NodeField = "vcpu_ratio"
	FieldOffline   NodeField = "offline"
	FieldFailN1    NodeField = "fail_n1"
	FieldTags      NodeField = "tags"
)

// DefaultNodeFields is the column order --print-nodes uses with no
// explicit field list.
var DefaultNodeFields = []NodeField{
	FieldName, FieldGroup, FieldTMem, FieldFMem, FieldTDsk, FieldFDsk,
	FieldTCpu, FieldPinst, FieldSinst, FieldFailN1,
}

// ParseFields resolves a --print-nodes=FIELDS argument against defaults:
// empty yields defaults unchanged; a "+"-prefixed list appends to
// defaults; anything else replaces them outright.
func ParseFields(spec string, defaults []NodeField) []NodeField {
	if spec == "" {
		return defaults
	}
	extend := strings.HasPrefix(spec, "+")
	spec = strings.TrimPrefix(spec, "+")

	var parsed []NodeField
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		parsed = append(parsed, NodeField(name))
	}

	if !extend {
		return parsed
	}
	out := make([]NodeField, 0, len(defaults)+len(parsed))
	out = append(out, defaults...)
	out = append(out, parsed...)
	return out
}

// NodeHeader returns the column header text for a field.
func NodeHeader(f NodeField) string {
	switch f {
	case FieldName:
		return "Name"
	case FieldAlias:
		return "Alias"
	case FieldGroup:
		return "Group"
	case FieldTMem:
		return "t_mem"
	case FieldFMem:
		return "f_mem"
	case FieldTDsk:
		return "t_dsk"
	case FieldFDsk:
		return "f_dsk"
	case FieldTCpu:
		return "t_cpu"
	case FieldPinst:
		return "pinst"
	case FieldSinst:
		return "sinst"
	case FieldFreeMem:
		return "fmem%"
	case FieldFreeDisk:
		return "fdsk%"
	case FieldVCPU:
		return "vcpu%"
	case FieldOffline:
		return "offline"
	case FieldFailN1:
		return "fail_n1"
	case FieldTags:
		return "tags"
	default:
		return string(f)
	}
}

// NodeValue renders field f of node n as display text. groupName
// resolves a group index to its display name.
func NodeValue(n *cluster.Node, f NodeField, groupName func(int) string) string {
	switch f {
	case FieldName:
		return n.Name()
	case FieldAlias:
		return n.Alias()
	case FieldGroup:
		return groupName(n.Group)
	case FieldTMem:
		return strconv.FormatInt(n.TMem, 10)
	case FieldFMem:
		return strconv.FormatInt(n.FMem, 10)
	case FieldTDsk:
		return strconv.FormatInt(n.TDsk, 10)
	case FieldFDsk:
		return strconv.FormatInt(n.FDsk, 10)
	case FieldTCpu:
		return strconv.Itoa(n.TCpu)
	case FieldPinst:
		return strconv.Itoa(len(n.PList))
	case FieldSinst:
		return strconv.Itoa(len(n.SList))
	case FieldFreeMem:
		return fmt.Sprintf("%.1f", ratio(n.FMem, n.TMem))
	case FieldFreeDisk:
		return fmt.Sprintf("%.1f", ratio(n.FDsk, n.TDsk))
	case FieldVCPU:
		if n.TCpu == 0 {
			return "0.0"
		}
		return fmt.Sprintf("%.1f", float64(vcpuCount(n))/float64(n.TCpu)*100)
	case FieldOffline:
		return strconv.FormatBool(n.Offline)
	case FieldFailN1:
		return strconv.FormatBool(n.FailN1)
	case FieldTags:
		return joinTags(n.Tags)
	default:
		return "?"
	}
}

func ratio(free, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(free) / float64(total) * 100
}

func vcpuCount(n *cluster.Node) int {
	return n.PCpu
}

func joinTags(tags map[string]struct{}) string {
	if len(tags) == 0 {
		return ""
	}
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	return strings.Join(out, ",")
}
