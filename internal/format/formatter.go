// Package format renders the cluster state, a balancer trajectory, and a
// tiered-allocation report in the three shapes the CLI exposes: a
// human-readable table, a machine-readable shell script, and JSON.
// Grounded directly on the teacher's report package
// (internal/report/reporter.go's Reporter interface and
// NewReporter switch, internal/report/table.go's errWriter-driven
// fixed-width printf table, internal/report/json.go's encoding/json
// wrapper-struct-plus-Encoder), generalized from "one simulation
// recommendation list" to "node table, instance table, placement
// trajectory, tiered capacity report".
package format

import (
	"io"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/move"
)

// Formatter renders the human/machine-readable report surfaces: node and
// instance tables, a placement trajectory, and a tiered-allocation
// report. ScriptFormatter (the --print-commands shell script) implements
// it for the placement trajectory only; its Nodes, Instances and Tiers
// return an error.
type Formatter interface {
	// Nodes renders the node table. costs is the optional per-node
	// cloudnode.NodeCosts result; when nil, no cost column is rendered.
	// When non-nil, a node absent from the map (untagged, or whose cloud
	// lookup failed) renders its cost cell as "-".
	Nodes(w io.Writer, cd *cluster.ClusterData, fields []NodeField, costs map[int]cloudnode.NodeCost) error
	Instances(w io.Writer, cd *cluster.ClusterData) error
	Placements(w io.Writer, cd *cluster.ClusterData, placements []balance.Placement) error
	Tiers(w io.Writer, tiers []allocate.TierResult) error
}

// New resolves a --output-format name to a Formatter, defaulting to the
// table renderer exactly as the teacher's report.NewReporter defaults to
// TableReporter for an unrecognised or empty format string.
func New(format string) Formatter {
	switch format {
	case "json":
		return &JSONFormatter{}
	case "script":
		return &ScriptFormatter{}
	default:
		return &TableFormatter{}
	}
}

// actionLetters renders move m as the short action-letter string §4.9
// specifies: "f" for a plain failover, "r:<node>" for a replace-secondary,
// and the natural composite ("f r:<node>" etc.) for the remaining
// variants, each read left-to-right as the sequence of primitive
// failover/replace steps the variant composes.
func actionLetters(m move.Move, nodeName func(int) string) string {
	switch m.Variant {
	case move.Failover:
		return "f"
	case move.FailoverToAny:
		return "f:" + nodeName(m.Target)
	case move.ReplaceSecondary:
		return "r:" + nodeName(m.Target)
	case move.ReplacePrimary:
		return "f r:" + nodeName(m.Target) + " f"
	case move.ReplaceAndFailover:
		return "r:" + nodeName(m.Target) + " f"
	case move.FailoverAndReplace:
		return "f r:" + nodeName(m.Target)
	default:
		return "?"
	}
}

func nodeNamer(cd *cluster.ClusterData) func(int) string {
	return func(idx int) string {
		if idx == cluster.NoNode {
			return "-"
		}
		n, ok := cd.Nodes.Find(idx)
		if !ok {
			return "?"
		}
		return n.Alias()
	}
}

func groupNamer(cd *cluster.ClusterData) func(int) string {
	return func(idx int) string {
		g, ok := cd.Groups.Find(idx)
		if !ok {
			return "-"
		}
		return g.Name()
	}
}
