package group

import (
	"context"
	"testing"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/container"
)

func twoGroupCluster(t *testing.T) *cluster.ClusterData {
	t.Helper()
	cd := cluster.New()

	groups := container.New[*cluster.Group]()
	g0 := cluster.NewGroup("g0", "uuid-0", cluster.AllocPreferred)
	g0.SetIdx(0)
	g1 := cluster.NewGroup("g1", "uuid-1", cluster.AllocLastResort)
	g1.SetIdx(1)
	groups.Add(g0)
	groups.Add(g1)
	cd.Groups = groups

	nodes := container.New[*cluster.Node]()
	n0 := cluster.NewNode("n0", 16384, 512000, 8, 4, 512000, 512, 0)
	n0.SetIdx(0)
	n0.Group = 0
	n1 := cluster.NewNode("n1", 16384, 512000, 8, 4, 512000, 512, 0)
	n1.SetIdx(1)
	n1.Group = 1
	nodes.Add(n0)
	nodes.Add(n1)
	cd.Nodes = nodes
	cd.Instances = container.New[*cluster.Instance]()
	return cd
}

func TestSelect_ExplicitUUID(t *testing.T) {
	cd := twoGroupCluster(t)
	idx, err := Select(cd, "uuid-1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected group 1, got %d", idx)
	}
}

func TestSelect_AmbiguousWithoutUUID(t *testing.T) {
	cd := twoGroupCluster(t)
	if _, err := Select(cd, ""); err == nil {
		t.Fatal("expected ambiguity error with two groups and no uuid")
	}
}

func TestSelect_SingleGroupDefaultsWithoutUUID(t *testing.T) {
	cd := twoGroupCluster(t)
	groups := container.New[*cluster.Group]()
	groups.Add(cd.Groups.MustFind(0))
	cd.Groups = groups

	idx, err := Select(cd, "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected group 0, got %d", idx)
	}
}

func TestScope_ExcludesOtherGroupsAndOfflineNodes(t *testing.T) {
	cd := twoGroupCluster(t)
	n1 := cd.Nodes.MustFind(1)
	offline := *n1
	offline.Offline = true
	cd.Nodes.Add(&offline)

	sub := Scope(cd, 0)
	if sub.Nodes.Size() != 1 {
		t.Fatalf("expected exactly 1 node in scope, got %d", sub.Nodes.Size())
	}
	if _, ok := sub.Nodes.Find(1); ok {
		t.Fatal("expected node 1 (other group) excluded from scope")
	}
}

func TestBalanceGroup_OnlyTouchesSelectedGroup(t *testing.T) {
	cd := twoGroupCluster(t)
	instances := container.New[*cluster.Instance]()
	for i := 0; i < 3; i++ {
		inst := cluster.NewInstance("inst", cluster.ISpec{RSpec: cluster.RSpec{CPU: 1, Mem: 3000, Disk: 10240}}, cluster.DTRbd, 0, cluster.NoNode, cluster.StatusRunning)
		inst.SetIdx(i)
		instances.Add(inst)
	}
	cd.Instances = instances
	for _, idx := range cd.Instances.Keys() {
		inst := cd.Instances.MustFind(idx)
		n := cd.Nodes.MustFind(0)
		n2, err := n.SetPri(inst)
		if err != nil {
			t.Fatalf("SetPri: %v", err)
		}
		cd.Nodes.Add(n2)
	}

	result, placements, err := BalanceGroup(context.Background(), cd, "uuid-0", balance.Options{
		MinScore: -1000, MaxLength: 10,
	})
	if err != nil {
		t.Fatalf("BalanceGroup: %v", err)
	}
	if len(placements) != 0 {
		t.Fatal("expected no placements: group 0 has only one node, nowhere to balance to")
	}
	if result.Nodes.MustFind(1).PList != nil {
		t.Fatal("expected group 1's node to remain untouched")
	}
}

func TestAllocateAcrossGroups_PrefersPreferredOverLastResort(t *testing.T) {
	cd := twoGroupCluster(t)
	shape := allocate.Shape{
		Name:         "i1",
		Spec:         cluster.ISpec{RSpec: cluster.RSpec{CPU: 1, Mem: 2048, Disk: 10240}},
		DiskTemplate: cluster.DTRbd,
	}

	result, chosen, err := AllocateAcrossGroups(context.Background(), cd, shape)
	if err != nil {
		t.Fatalf("AllocateAcrossGroups: %v", err)
	}
	if chosen.GroupIdx != 0 {
		t.Fatalf("expected the preferred group (0) to be chosen, got %d", chosen.GroupIdx)
	}
	inst := result.Instances.MustFind(chosen.Result.InstanceIdx)
	if inst.Primary != 0 {
		t.Fatalf("expected instance placed on group 0's node, got primary %d", inst.Primary)
	}
}

func TestAllocateAcrossGroups_FallsBackToLastResort(t *testing.T) {
	cd := twoGroupCluster(t)
	n0 := cd.Nodes.MustFind(0)
	full := *n0
	full.FMem = 0
	cd.Nodes.Add(&full)

	shape := allocate.Shape{
		Name:         "i1",
		Spec:         cluster.ISpec{RSpec: cluster.RSpec{CPU: 1, Mem: 2048, Disk: 10240}},
		DiskTemplate: cluster.DTRbd,
	}

	_, chosen, err := AllocateAcrossGroups(context.Background(), cd, shape)
	if err != nil {
		t.Fatalf("AllocateAcrossGroups: %v", err)
	}
	if chosen.GroupIdx != 1 {
		t.Fatalf("expected fallback to last_resort group 1, got %d", chosen.GroupIdx)
	}
}
