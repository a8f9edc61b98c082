// Package loader turns the raw, name-keyed data produced by a parser
// (internal/textfmt or internal/rapi) into a consistent cluster.ClusterData:
// it assigns internal indices, resolves name references into index
// references, overlays dynamic utilisation, applies the exclusion-tag and
// instance-selection filters, and runs the consistency checks that make
// every later package able to assume a well-formed snapshot.
package loader

import "github.com/yiannist/clusterfit/internal/cluster"

// RawNode is one node record as read from a parser, before indices exist.
type RawNode struct {
	Name          string
	TMem          int64
	TDsk          int64
	TCpu          int
	TSpindles     int
	TDiskFree     int64
	TMemNode      int64
	XMem          int64
	Offline       bool
	Drained       bool
	VMCapable     bool
	MasterCapable bool
	Group         string
	MDsk          float64
	MCpu          float64
	Tags          []string
}

// RawInstance is one instance record as read from a parser.
type RawInstance struct {
	Name          string
	Spec          cluster.ISpec
	DiskTemplate  cluster.DiskTemplate
	PrimaryNode   string
	SecondaryNode string
	RunStatus     cluster.RunStatus
	AutoBalance   bool
	Tags          []string
}

// RawGroup is one node-group record as read from a parser.
type RawGroup struct {
	Name        string
	UUID        string
	AllocPolicy cluster.AllocPolicy
	Networks    []string
	Policy      cluster.IPolicy
	Tags        []string
}

// RawCluster is the complete name-keyed input to Merge.
type RawCluster struct {
	Nodes       []RawNode
	Instances   []RawInstance
	Groups      []RawGroup
	ClusterTags []string
	IPolicy     cluster.IPolicy
}

// MergeOptions carries the administrator-supplied overlay and filters that
// Merge applies on top of the raw parsed data.
type MergeOptions struct {
	// DynUtil overlays per-instance dynamic utilisation onto any instance
	// found by name; unknown names are skipped silently.
	DynUtil map[string]cluster.DynUtil

	// ExTags are exclusion-tag prefixes; an instance's tags are filtered
	// down to the ones starting with one of these prefixes, and two
	// instances sharing such a tag may not share a node as primaries.
	ExTags []string

	// SelInstances, if non-empty, restricts balancing moves to exactly
	// these instance names; ExInstances always excludes the named ones.
	SelInstances []string
	ExInstances  []string
}
