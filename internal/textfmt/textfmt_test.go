package textfmt

import (
	"bytes"
	"strings"
	"testing"
)

const sample = `g0|uuid-0|preferred|prod,web|net0

node0|16384|512|14848|512000|512000|8|N|uuid-0|4|rack1|N|4|8|1

inst0|2048|10240|1|running|Y|node0|-|rbd|env:prod|0|0

prod

cluster|0,0,0,0,0,0|512,5120,1,1,1,0|16384,512000,8,16,4,1|drbd,rbd|4|32`

func TestReadWrite_RoundTrips(t *testing.T) {
	doc, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc2, err := Read(&buf)
	if err != nil {
		t.Fatalf("re-Read: %v", err)
	}

	if len(doc2.Nodes) != 1 || doc2.Nodes[0].Name != "node0" {
		t.Fatalf("expected node0 to survive the round trip, got %+v", doc2.Nodes)
	}
	if doc2.Nodes[0].TMem != doc.Nodes[0].TMem || doc2.Nodes[0].FMem != doc.Nodes[0].FMem {
		t.Fatalf("node fields changed across round trip: %+v vs %+v", doc.Nodes[0], doc2.Nodes[0])
	}
	if len(doc2.Instances) != 1 || doc2.Instances[0].Name != "inst0" {
		t.Fatalf("expected inst0 to survive the round trip, got %+v", doc2.Instances)
	}
	if len(doc2.ClusterTags) != 1 || doc2.ClusterTags[0] != "prod" {
		t.Fatalf("expected cluster tag to survive, got %+v", doc2.ClusterTags)
	}
	if len(doc2.IPolicies) != 1 || doc2.IPolicies[0].Scope != "cluster" {
		t.Fatalf("expected ipolicy to survive, got %+v", doc2.IPolicies)
	}
}

func TestToRawCluster_DefaultsGroupPolicyToClusterWide(t *testing.T) {
	doc, err := Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	raw := ToRawCluster(doc)
	if len(raw.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(raw.Groups))
	}
	if raw.Groups[0].Policy.VCPURatio != raw.IPolicy.VCPURatio {
		t.Fatalf("expected group policy to default to cluster-wide policy, got %+v vs %+v", raw.Groups[0].Policy, raw.IPolicy)
	}
}

func TestParseNodeLine_RejectsBadOfflineRole(t *testing.T) {
	bad := "node0|16384|512|14848|512000|512000|8|X|uuid-0|4|rack1|N|4|8|1"
	if _, err := parseNodeLine(bad); err == nil {
		t.Fatal("expected an error for an invalid offline_role")
	}
}
