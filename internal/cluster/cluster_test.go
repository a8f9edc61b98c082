package cluster

import "testing"

func mkInstance(idx int, mem, disk int64, cpu int, dt DiskTemplate, primary, secondary int) *Instance {
	i := NewInstance("inst", ISpec{RSpec: RSpec{CPU: cpu, Mem: mem, Disk: disk}}, dt, primary, secondary, StatusRunning)
	i.SetIdx(idx)
	return i
}

func TestNewNode_SeedsFreeCapacity(t *testing.T) {
	n := NewNode("node1.example.com", 16384, 512000, 8, 4, 512000, 512, 0)
	if n.FMem != 16384-512 {
		t.Fatalf("FMem = %d, want %d", n.FMem, 16384-512)
	}
	if n.FDsk != 512000 {
		t.Fatalf("FDsk = %d, want %d", n.FDsk, 512000)
	}
	if n.FailN1 {
		t.Fatalf("freshly built node should not be FailN1")
	}
}

func TestSetPri_UpdatesSumsAndFreeCapacity(t *testing.T) {
	n := NewNode("node1", 16384, 512000, 8, 4, 512000, 512, 0)
	inst := mkInstance(0, 2048, 10240, 2, DTPlain, 0, NoNode)

	n2, err := n.SetPri(inst)
	if err != nil {
		t.Fatalf("SetPri: %v", err)
	}
	if n2.PMem != 2048 || n2.PDsk != 10240 || n2.PCpu != 2 {
		t.Fatalf("unexpected sums: %+v", n2)
	}
	if n2.FMem != n.FMem-2048 {
		t.Fatalf("FMem = %d, want %d", n2.FMem, n.FMem-2048)
	}
	if len(n2.PList) != 1 || n2.PList[0] != 0 {
		t.Fatalf("PList = %v", n2.PList)
	}
	// original is untouched
	if n.PMem != 0 {
		t.Fatalf("original node was mutated: PMem = %d", n.PMem)
	}
}

func TestRemovePri_ReversesSetPri(t *testing.T) {
	n := NewNode("node1", 16384, 512000, 8, 4, 512000, 512, 0)
	inst := mkInstance(0, 2048, 10240, 2, DTPlain, 0, NoNode)

	n2, _ := n.SetPri(inst)
	n3 := n2.RemovePri(inst)
	if n3.PMem != 0 || n3.PDsk != 0 || n3.PCpu != 0 {
		t.Fatalf("sums not reversed: %+v", n3)
	}
	if n3.FMem != n.FMem || n3.FDsk != n.FDsk {
		t.Fatalf("free capacity not restored: %+v", n3)
	}
	if len(n3.PList) != 0 {
		t.Fatalf("PList not emptied: %v", n3.PList)
	}
}

func TestSetPri_FailsOnOvercommit(t *testing.T) {
	n := NewNode("node1", 4096, 10000, 4, 2, 10000, 512, 0)
	inst := mkInstance(0, 8192, 1000, 1, DTPlain, 0, NoNode)

	_, err := n.SetPri(inst)
	if err == nil {
		t.Fatal("expected FailMem error on overcommit")
	}
	fe, ok := err.(*FailError)
	if !ok {
		t.Fatalf("expected *FailError, got %T", err)
	}
	if fe.Mode.String() != "FailMem" {
		t.Fatalf("expected FailMem, got %v", fe.Mode)
	}
}

func TestSetPri_FailsOnNegativeSpindles(t *testing.T) {
	n := NewNode("node1", 16384, 512000, 8, 2, 512000, 512, 0)
	inst := mkInstance(0, 2048, 10240, 1, DTPlain, 0, NoNode)
	inst.Spec.SpindleUse = 3

	_, err := n.SetPri(inst)
	if err == nil {
		t.Fatal("expected FailDisk error on negative spindle count")
	}
	fe, ok := err.(*FailError)
	if !ok || fe.Mode.String() != "FailDisk" {
		t.Fatalf("expected FailDisk, got %v (%T)", err, err)
	}
}

func TestSetPri_UsesPolicyVCPURatioOverMCpu(t *testing.T) {
	// MCpu (the node's own ceiling) is loose; the group's IPolicy.VCPURatio
	// is tighter and must win, matching recomputeFailN1.
	n := NewNode("node1", 16384, 512000, 4, 4, 512000, 512, 0)
	n = n.SetMcpu(4.0)
	n = n.SetPolicy(IPolicy{VCPURatio: 1.0})
	inst := mkInstance(0, 2048, 10240, 8, DTPlain, 0, NoNode)

	n2, err := n.SetPri(inst)
	if err == nil {
		t.Fatal("expected FailCPU error under the policy's tighter VCPURatio")
	}
	fe, ok := err.(*FailError)
	if !ok || fe.Mode.String() != "FailCPU" {
		t.Fatalf("expected FailCPU, got %v (%T)", err, err)
	}
	if !n2.FailN1 {
		t.Fatalf("returned node should already report FailN1 consistent with the rejection")
	}
}

func TestSetSec_FailsOnNegativeSpindles(t *testing.T) {
	n := NewNode("node1", 16384, 512000, 8, 2, 512000, 512, 0)
	inst := mkInstance(0, 2048, 10240, 1, DTDrbd, 10, 0)
	inst.Spec.SpindleUse = 3

	_, err := n.SetSec(inst)
	if err == nil {
		t.Fatal("expected FailDisk error on negative spindle count")
	}
	fe, ok := err.(*FailError)
	if !ok || fe.Mode.String() != "FailDisk" {
		t.Fatalf("expected FailDisk, got %v (%T)", err, err)
	}
}

func TestSetPri_FailsOnMDskRatioViolation(t *testing.T) {
	// TDsk=10000, MDsk=0.25 (default) means free disk must stay >= 2500.
	n := NewNode("node1", 16384, 10000, 8, 4, 10000, 512, 0)
	inst := mkInstance(0, 2048, 8000, 1, DTPlain, 0, NoNode)

	_, err := n.SetPri(inst)
	if err == nil {
		t.Fatal("expected FailN1 error on m_dsk ratio violation")
	}
	fe, ok := err.(*FailError)
	if !ok || fe.Mode.String() != "FailN1" {
		t.Fatalf("expected FailN1, got %v (%T)", err, err)
	}
}

func TestSetSec_FailsOnMDskRatioViolation(t *testing.T) {
	n := NewNode("node1", 16384, 10000, 8, 4, 10000, 512, 0)
	inst := mkInstance(0, 2048, 8000, 1, DTDrbd, 10, 0)

	_, err := n.SetSec(inst)
	if err == nil {
		t.Fatal("expected FailN1 error on m_dsk ratio violation")
	}
	fe, ok := err.(*FailError)
	if !ok || fe.Mode.String() != "FailN1" {
		t.Fatalf("expected FailN1, got %v (%T)", err, err)
	}
}

func TestBuildPeers_ComputesReservedMemory(t *testing.T) {
	secondary := NewNode("sec", 16384, 512000, 8, 4, 512000, 512, 0)
	primA := mkInstance(0, 2048, 10240, 2, DTDrbd, 10, 0)
	primB := mkInstance(1, 4096, 10240, 2, DTDrbd, 11, 0)

	s1, err := secondary.SetSec(primA)
	if err != nil {
		t.Fatalf("SetSec: %v", err)
	}
	s2, err := s1.SetSec(primB)
	if err != nil {
		t.Fatalf("SetSec: %v", err)
	}

	lookup := func(idx int) (*Instance, bool) {
		switch idx {
		case 0:
			return primA, true
		case 1:
			return primB, true
		}
		return nil, false
	}
	s3 := s2.BuildPeers(lookup)
	if s3.Peers[10] != 2048 || s3.Peers[11] != 4096 {
		t.Fatalf("unexpected peers: %+v", s3.Peers)
	}
	if s3.RMem != 4096 {
		t.Fatalf("RMem = %d, want 4096 (the larger of the two peer sums)", s3.RMem)
	}
}

func TestFailN1_ConsistentWhenFreeMemoryCoversReservation(t *testing.T) {
	n := NewNode("node1", 4096, 512000, 8, 4, 512000, 512, 0)
	inst := mkInstance(0, 3000, 10240, 1, DTDrbd, 10, 0)
	n2, err := n.SetSec(inst)
	if err != nil {
		t.Fatalf("SetSec: %v", err)
	}
	n3 := n2.BuildPeers(func(idx int) (*Instance, bool) { return inst, true })
	if n3.RMem != 3000 {
		t.Fatalf("RMem = %d, want 3000", n3.RMem)
	}
	// FMem (4096-512=3584) > RMem (3000): should still be consistent.
	if n3.FailN1 {
		t.Fatalf("expected N+1 consistent, got FailN1=true (FMem=%d RMem=%d)", n3.FMem, n3.RMem)
	}
}

func TestFailN1_TriggersWhenFreeMemoryBelowReservation(t *testing.T) {
	n := NewNode("node1", 4096, 512000, 8, 4, 512000, 512, 0)
	inst := mkInstance(0, 3700, 10240, 1, DTDrbd, 10, 0)
	n2, err := n.SetSec(inst)
	if err != nil {
		t.Fatalf("SetSec: %v", err)
	}
	n3 := n2.BuildPeers(func(idx int) (*Instance, bool) { return inst, true })
	// FMem (4096-512=3584) < RMem (3700): N+1 inconsistent.
	if !n3.FailN1 {
		t.Fatalf("expected FailN1=true (FMem=%d RMem=%d)", n3.FMem, n3.RMem)
	}
}

func TestSpecMatches(t *testing.T) {
	pol := IPolicy{
		Min: ISpec{RSpec: RSpec{CPU: 1, Mem: 512, Disk: 1024}},
		Max: ISpec{RSpec: RSpec{CPU: 8, Mem: 16384, Disk: 1048576}},
	}
	ok := ISpec{RSpec: RSpec{CPU: 2, Mem: 2048, Disk: 10240}}
	tooBig := ISpec{RSpec: RSpec{CPU: 16, Mem: 2048, Disk: 10240}}

	if !SpecMatches(pol, ok) {
		t.Fatal("expected in-range spec to match")
	}
	if SpecMatches(pol, tooBig) {
		t.Fatal("expected over-CPU spec to not match")
	}
}

func TestDiskTemplate_MirrorClassification(t *testing.T) {
	if !DTDrbd.IsInternalMirror() {
		t.Fatal("drbd should be an internal mirror")
	}
	if DTDrbd.IsExternalMirror() {
		t.Fatal("drbd should not be an external mirror")
	}
	if !DTRbd.IsExternalMirror() {
		t.Fatal("rbd should be an external mirror")
	}
	if DTDiskless.HasSecondary() {
		t.Fatal("diskless instances should have no secondary")
	}
}

func TestInstance_NoSecondaryForExternalTemplates(t *testing.T) {
	i := NewInstance("i1", ISpec{}, DTRbd, 0, 5, StatusRunning)
	if i.Secondary != NoNode {
		t.Fatalf("expected Secondary=NoNode for rbd instance, got %d", i.Secondary)
	}
}
