package balance

import (
	"context"
	"testing"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/container"
	"github.com/yiannist/clusterfit/internal/move"
	"github.com/yiannist/clusterfit/internal/score"
)

func imbalancedCluster(t *testing.T) *cluster.ClusterData {
	t.Helper()
	cd := cluster.New()
	nodes := container.New[*cluster.Node]()
	busy := cluster.NewNode("busy", 16384, 512000, 8, 4, 512000, 512, 0)
	busy.SetIdx(0)
	idle := cluster.NewNode("idle", 16384, 512000, 8, 4, 512000, 512, 0)
	idle.SetIdx(1)
	nodes.Add(busy)
	nodes.Add(idle)
	cd.Nodes = nodes

	instances := container.New[*cluster.Instance]()
	var idxs []int
	for i := 0; i < 3; i++ {
		inst := cluster.NewInstance("inst", cluster.ISpec{RSpec: cluster.RSpec{CPU: 1, Mem: 3000, Disk: 10240}}, cluster.DTRbd, 0, cluster.NoNode, cluster.StatusRunning)
		inst.SetIdx(i)
		instances.Add(inst)
		idxs = append(idxs, i)
	}
	cd.Instances = instances

	for _, idx := range idxs {
		inst := cd.Instances.MustFind(idx)
		n := cd.Nodes.MustFind(0)
		n2, err := n.SetPri(inst)
		if err != nil {
			t.Fatalf("SetPri: %v", err)
		}
		cd.Nodes.Add(n2)
	}
	return cd
}

func TestBalance_MovesInstancesToReduceImbalance(t *testing.T) {
	cd := imbalancedCluster(t)
	startScore := score.Score(cd.Nodes, cd.Instances)

	result, placements, err := Balance(context.Background(), cd, Options{
		MinScore:     0,
		MaxLength:    10,
		MinGain:      0,
		MinGainLimit: 0,
	})
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if len(placements) == 0 {
		t.Fatal("expected at least one placement to improve balance")
	}
	endScore := score.Score(result.Nodes, result.Instances)
	if endScore >= startScore {
		t.Fatalf("expected improved score: start=%v end=%v", startScore, endScore)
	}

	busy := result.Nodes.MustFind(0)
	idle := result.Nodes.MustFind(1)
	if len(idle.PList) == 0 {
		t.Fatalf("expected at least one instance moved onto the idle node, busy=%v idle=%v", busy.PList, idle.PList)
	}
}

func TestBalance_RespectsMaxLength(t *testing.T) {
	cd := imbalancedCluster(t)
	_, placements, err := Balance(context.Background(), cd, Options{
		MinScore:     -1000,
		MaxLength:    1,
		MinGain:      0,
		MinGainLimit: 0,
	})
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if len(placements) != 1 {
		t.Fatalf("expected exactly 1 placement (max_length), got %d", len(placements))
	}
}

func TestBalance_StopsImmediatelyWhenAlreadyAtMinScore(t *testing.T) {
	cd := imbalancedCluster(t)
	startScore := score.Score(cd.Nodes, cd.Instances)

	_, placements, err := Balance(context.Background(), cd, Options{
		MinScore: startScore + 1000, // already satisfied
	})
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if len(placements) != 0 {
		t.Fatalf("expected no placements when min_score already satisfied, got %d", len(placements))
	}
}

func TestJobsets_SplitsOnNodeOverlap(t *testing.T) {
	placements := []Placement{
		{InstanceIdx: 0, Move: move.Move{Variant: move.FailoverToAny, Target: 1}, NodesTouched: []int{0, 1}},
		{InstanceIdx: 1, Move: move.Move{Variant: move.FailoverToAny, Target: 2}, NodesTouched: []int{3, 2}},
		{InstanceIdx: 2, Move: move.Move{Variant: move.FailoverToAny, Target: 1}, NodesTouched: []int{5, 1}},
	}
	jobsets := Jobsets(placements)
	if len(jobsets) != 2 {
		t.Fatalf("expected 2 jobsets, got %d: %+v", len(jobsets), jobsets)
	}
	if len(jobsets[0]) != 2 {
		t.Fatalf("expected first jobset to hold 2 non-overlapping placements, got %d", len(jobsets[0]))
	}
	if len(jobsets[1]) != 1 {
		t.Fatalf("expected second jobset to hold the overlapping placement, got %d", len(jobsets[1]))
	}
}
