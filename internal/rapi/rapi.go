// Package rapi reads a cluster snapshot from the remote-API JSON format
// (§6): four independent streams — groups, nodes, instances, cluster
// tags — each a JSON array of objects, keyed the way Ganeti's RAPI
// itself names them (mtotal, mnode, mfree, beparams.memory, pnode,
// snodes, group.uuid, ...). Grounded on the teacher's StaticCollector
// (internal/metrics/static.go): json.Unmarshal straight into a typed
// struct, no intermediate map[string]interface{} walking.
package rapi

import (
	"encoding/json"
	"io"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/loader"
)

// groupDoc mirrors one element of the RAPI /2/groups?bulk=1 response.
type groupDoc struct {
	Name        string   `json:"name"`
	UUID        string   `json:"uuid"`
	AllocPolicy string   `json:"alloc_policy"`
	Networks    []string `json:"networks"`
	Tags        []string `json:"tags"`
}

// groupRef mirrors the nested {"uuid": "..."} object RAPI embeds in a
// node document to name its group.
type groupRef struct {
	UUID string `json:"uuid"`
}

// nodeDoc mirrors one element of the RAPI /2/nodes?bulk=1 response.
type nodeDoc struct {
	Name          string   `json:"name"`
	MTotal        int64    `json:"mtotal"`
	MNode         int64    `json:"mnode"`
	MFree         int64    `json:"mfree"`
	DTotal        int64    `json:"dtotal"`
	DFree         int64    `json:"dfree"`
	CTotal        int      `json:"ctotal"`
	Offline       bool     `json:"offline"`
	Drained       bool     `json:"drained"`
	VMCapable     bool     `json:"vm_capable"`
	MasterCapable bool     `json:"master_capable"`
	Group         groupRef `json:"group"`
	Spindles      int      `json:"spindles_total"`
	Tags          []string `json:"tags"`
}

// beparams mirrors the subset of RAPI's per-instance backend parameters
// the placement engine consumes.
type beparams struct {
	Memory      int64 `json:"memory"`
	VCPUs       int   `json:"vcpus"`
	AutoBalance bool  `json:"auto_balance"`
}

// instanceDoc mirrors one element of the RAPI /2/instances?bulk=1
// response.
type instanceDoc struct {
	Name         string   `json:"name"`
	DiskUsage    int64    `json:"disk_usage"`
	OperRAM      int64    `json:"oper_ram"`
	PNode        string   `json:"pnode"`
	SNodes       []string `json:"snodes"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags"`
	DiskTemplate string   `json:"disk_template"`
	BEParams     beparams `json:"beparams"`
}

// Streams is the four independent JSON array payloads RAPI exposes.
type Streams struct {
	Groups      io.Reader
	Nodes       io.Reader
	Instances   io.Reader
	ClusterTags io.Reader
}

// Read decodes the four streams and assembles a loader.RawCluster. The
// cluster-wide IPolicy is left at its zero value: RAPI has no single
// "cluster ipolicy" stream in §6's interface list, so callers that need
// one supply it separately (e.g. from a config default) before calling
// loader.Merge.
func Read(s Streams) (loader.RawCluster, error) {
	var raw loader.RawCluster

	var groups []groupDoc
	if err := decode(s.Groups, &groups); err != nil {
		return raw, clustererr.New("rapi", "decoding groups: %v", err)
	}
	for _, g := range groups {
		raw.Groups = append(raw.Groups, loader.RawGroup{
			Name:        g.Name,
			UUID:        g.UUID,
			AllocPolicy: cluster.AllocPolicy(g.AllocPolicy),
			Networks:    g.Networks,
			Tags:        g.Tags,
		})
	}

	groupNameByUUID := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNameByUUID[g.UUID] = g.Name
	}

	var nodes []nodeDoc
	if err := decode(s.Nodes, &nodes); err != nil {
		return raw, clustererr.New("rapi", "decoding nodes: %v", err)
	}
	for _, n := range nodes {
		raw.Nodes = append(raw.Nodes, loader.RawNode{
			Name:          n.Name,
			TMem:          n.MTotal,
			TDsk:          n.DTotal,
			TCpu:          n.CTotal,
			TSpindles:     n.Spindles,
			TDiskFree:     n.DFree,
			TMemNode:      n.MNode,
			XMem:          n.MTotal - n.MNode - n.MFree,
			Offline:       n.Offline,
			Drained:       n.Drained,
			VMCapable:     n.VMCapable,
			MasterCapable: n.MasterCapable,
			Group:         groupNameByUUID[n.Group.UUID],
			Tags:          n.Tags,
		})
	}

	var instances []instanceDoc
	if err := decode(s.Instances, &instances); err != nil {
		return raw, clustererr.New("rapi", "decoding instances: %v", err)
	}
	for _, i := range instances {
		secondary := ""
		if len(i.SNodes) > 0 {
			secondary = i.SNodes[0]
		}
		raw.Instances = append(raw.Instances, loader.RawInstance{
			Name: i.Name,
			Spec: cluster.ISpec{
				RSpec: cluster.RSpec{CPU: i.BEParams.VCPUs, Mem: i.BEParams.Memory, Disk: i.DiskUsage},
			},
			DiskTemplate:  cluster.DiskTemplate(i.DiskTemplate),
			PrimaryNode:   i.PNode,
			SecondaryNode: secondary,
			RunStatus:     cluster.RunStatus(i.Status),
			AutoBalance:   i.BEParams.AutoBalance,
			Tags:          i.Tags,
		})
	}

	var tags []string
	if s.ClusterTags != nil {
		if err := decode(s.ClusterTags, &tags); err != nil {
			return raw, clustererr.New("rapi", "decoding cluster tags: %v", err)
		}
	}
	raw.ClusterTags = tags

	for idx := range raw.Groups {
		raw.Groups[idx].Policy = raw.IPolicy
	}

	return raw, nil
}

func decode(r io.Reader, v interface{}) error {
	if r == nil {
		return nil
	}
	return json.NewDecoder(r).Decode(v)
}
