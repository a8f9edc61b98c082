package cloudnode

import "testing"

func TestParseInstanceType(t *testing.T) {
	tests := []struct {
		input  string
		family string
		gen    int
		size   string
	}{
		{"m5.xlarge", "m5", 5, "xlarge"},
		{"m7g.large", "m7g", 7, "large"},
		{"c6i.2xlarge", "c6i", 6, "2xlarge"},
		{"r5.metal", "r5", 5, "metal"},
		{"t3.micro", "t3", 3, "micro"},
		{"p4d.24xlarge", "p4d", 4, "24xlarge"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			family, gen, size := parseInstanceType(tt.input)
			if family != tt.family {
				t.Errorf("family: got %q, want %q", family, tt.family)
			}
			if gen != tt.gen {
				t.Errorf("generation: got %d, want %d", gen, tt.gen)
			}
			if size != tt.size {
				t.Errorf("size: got %q, want %q", size, tt.size)
			}
		})
	}
}

func TestInstanceType_MonthlyCost(t *testing.T) {
	it := InstanceType{OnDemandPricePerHour: 0.10}
	got := it.MonthlyCost()
	want := 73.05
	if got != want {
		t.Errorf("MonthlyCost() = %v, want %v", got, want)
	}
}

func TestToSet(t *testing.T) {
	s := toSet([]string{"m5", "c6i"})
	if !s["m5"] || !s["c6i"] || s["t3"] {
		t.Errorf("unexpected set contents: %+v", s)
	}
}
