package cmd

import "testing"

func TestLoadRawCluster_NoneGiven(t *testing.T) {
	_, err := loadRawCluster(dataSourceFlags{})
	if err == nil {
		t.Fatal("expected error when no data source is given")
	}
}

func TestLoadRawCluster_MutuallyExclusive(t *testing.T) {
	_, err := loadRawCluster(dataSourceFlags{textData: "cluster.txt", rapiAddr: "/tmp/bundle"})
	if err == nil {
		t.Fatal("expected error when more than one data source is given")
	}
}

func TestLoadRawCluster_LuxiRejected(t *testing.T) {
	_, err := loadRawCluster(dataSourceFlags{luxi: "/var/run/ganeti-luxi"})
	if err == nil {
		t.Fatal("expected --luxi to be rejected")
	}
}

func TestLoadRawCluster_MissingTextFile(t *testing.T) {
	_, err := loadRawCluster(dataSourceFlags{textData: "/nonexistent/cluster.txt"})
	if err == nil {
		t.Fatal("expected error for a missing --text-data file")
	}
}

func TestLoadRapiCluster_MissingBundle(t *testing.T) {
	_, err := loadRapiCluster("/nonexistent/rapi-bundle")
	if err == nil {
		t.Fatal("expected error for a missing RAPI bundle directory")
	}
}
