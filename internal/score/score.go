// Package score computes the scalar cluster score the balancer tries to
// minimise: a sum of standard deviations over per-node resource ratios
// plus a handful of unbounded violation counts, the same "bounded ratios
// plus hard-pressure counts" shape the teacher's Scorer composites a
// weighted sum of sub-scores with.
package score

import (
	"math"

	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/container"
)

// Score computes the cluster score over the given nodes and instances.
// Only vm_capable, online (non-offline) nodes contribute their ratio
// terms to the standard-deviation sums; every instance still contributes
// to the two offline counts regardless of which nodes are scored.
func Score(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) float64 {
	var freeMem, reservedMem, freeDisk, vcpu, spindle []float64
	var cpuLoad, memLoad, diskLoad, netLoad []float64
	var n1Failures int

	for _, n := range nodes.Elems() {
		if !n.VMCapable || n.Offline {
			continue
		}
		if n.FailN1 {
			n1Failures++
		}
		freeMem = append(freeMem, ratio(float64(n.FMem), float64(n.TMem)))
		reservedMem = append(reservedMem, ratio(float64(n.RMem), float64(n.TMem)))
		freeDisk = append(freeDisk, ratio(float64(n.FDsk), float64(n.TDsk)))
		vcpu = append(vcpu, ratio(float64(n.PCpu), float64(n.TCpu)))
		spindle = append(spindle, ratio(float64(n.TSpindles-n.FSpindles), float64(n.TSpindles)))
		cpuLoad = append(cpuLoad, n.ULoad.CPU)
		memLoad = append(memLoad, n.ULoad.Mem)
		diskLoad = append(diskLoad, n.ULoad.Disk)
		netLoad = append(netLoad, n.ULoad.Net)
	}

	offlineInstanceCount, offlinePrimaryCount := countOfflineInstances(nodes, instances)

	return stddev(freeMem) + stddev(reservedMem) + stddev(freeDisk) +
		float64(n1Failures) +
		float64(offlineInstanceCount) +
		float64(offlinePrimaryCount) +
		stddev(vcpu) + stddev(spindle) +
		stddev(cpuLoad) + stddev(memLoad) + stddev(diskLoad) + stddev(netLoad)
}

// countOfflineInstances returns the number of instances living on an
// offline node (primary or secondary) and the number whose primary is
// offline.
func countOfflineInstances(nodes *container.Container[*cluster.Node], instances *container.Container[*cluster.Instance]) (onOffline, primaryOffline int) {
	for _, inst := range instances.Elems() {
		pn, ok := nodes.Find(inst.Primary)
		primaryIsOffline := ok && pn.Offline
		secondaryIsOffline := false
		if inst.HasSecondaryNode() {
			if sn, ok := nodes.Find(inst.Secondary); ok {
				secondaryIsOffline = sn.Offline
			}
		}
		if primaryIsOffline || secondaryIsOffline {
			onOffline++
		}
		if primaryIsOffline {
			primaryOffline++
		}
	}
	return onOffline, primaryOffline
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// stddev returns the population standard deviation of xs, or 0 for fewer
// than two samples.
func stddev(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}
