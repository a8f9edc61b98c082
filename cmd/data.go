package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/kube"
	"github.com/yiannist/clusterfit/internal/loader"
	"github.com/yiannist/clusterfit/internal/metrics"
	"github.com/yiannist/clusterfit/internal/rapi"
	"github.com/yiannist/clusterfit/internal/textfmt"
)

// dataSourceFlags carries the --text-data/--rapi/--luxi trio shared by
// balance and allocate, grounded on the teacher's recommend.go pattern of
// reading a handful of flags into a local struct before building the
// collector/provider.
type dataSourceFlags struct {
	textData string
	rapiAddr string
	luxi     string
}

func bindDataSourceFlags(fs *pflag.FlagSet, d *dataSourceFlags) {
	fs.StringVarP(&d.textData, "text-data", "t", "", "read snapshot from a text file")
	fs.StringVarP(&d.rapiAddr, "rapi", "m", "", "read snapshot from a remote-API JSON bundle directory")
	fs.StringVarP(&d.luxi, "luxi", "L", "", "read snapshot via local socket (not supported: clusterfit never issues live RPC)")
}

// loadRawCluster reads the raw, name-keyed cluster snapshot from whichever
// data source was configured, erroring with an owner-prefixed message if
// none or more than one was given.
func loadRawCluster(d dataSourceFlags) (loader.RawCluster, error) {
	sources := 0
	if d.textData != "" {
		sources++
	}
	if d.rapiAddr != "" {
		sources++
	}
	if d.luxi != "" {
		sources++
	}
	if sources == 0 {
		return loader.RawCluster{}, clustererr.New("cmd", "one of --text-data, --rapi, or --luxi is required")
	}
	if sources > 1 {
		return loader.RawCluster{}, clustererr.New("cmd", "--text-data, --rapi, and --luxi are mutually exclusive")
	}

	if d.luxi != "" {
		return loader.RawCluster{}, clustererr.New("cmd", "--luxi is not supported: clusterfit reads a snapshot but never submits jobs over a live socket")
	}

	if d.textData != "" {
		f, err := os.Open(d.textData)
		if err != nil {
			return loader.RawCluster{}, clustererr.New("--text-data", "%v", err)
		}
		defer f.Close()

		doc, err := textfmt.Read(f)
		if err != nil {
			return loader.RawCluster{}, clustererr.New("--text-data", "%v", err)
		}
		return textfmt.ToRawCluster(doc), nil
	}

	return loadRapiCluster(d.rapiAddr)
}

// loadRapiCluster reads the four RAPI JSON streams from a directory named
// by addr, each file matching one of §6's stream names.
func loadRapiCluster(addr string) (loader.RawCluster, error) {
	open := func(name string) (*os.File, error) {
		return os.Open(strings.TrimSuffix(addr, "/") + "/" + name)
	}

	groups, err := open("groups.json")
	if err != nil {
		return loader.RawCluster{}, clustererr.New("--rapi", "%v", err)
	}
	defer groups.Close()

	nodes, err := open("nodes.json")
	if err != nil {
		return loader.RawCluster{}, clustererr.New("--rapi", "%v", err)
	}
	defer nodes.Close()

	instances, err := open("instances.json")
	if err != nil {
		return loader.RawCluster{}, clustererr.New("--rapi", "%v", err)
	}
	defer instances.Close()

	var tags *os.File
	if f, err := open("tags.json"); err == nil {
		tags = f
		defer tags.Close()
	}

	raw, err := rapi.Read(rapi.Streams{Groups: groups, Nodes: nodes, Instances: instances, ClusterTags: tags})
	if err != nil {
		return loader.RawCluster{}, err
	}
	return raw, nil
}

// resolveDynUtil collects the dynamic-utilisation overlay from whichever
// monitoring backend cfg names, returning an empty overlay (every
// instance's DynUtil stays its zero value) when none is configured —
// supplying neither --monitoring-url nor --discover is valid per
// SPEC_FULL.md §6.
func resolveDynUtil(ctx context.Context) (map[string]cluster.DynUtil, error) {
	collector, cleanup, err := resolveCollector(ctx)
	if err != nil {
		if cfg.Monitoring.URL == "" && !cfg.Kubernetes.Enabled {
			return nil, nil
		}
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	now := time.Now()
	overlay, err := collector.Collect(ctx, metrics.CollectOptions{
		Window:       metrics.TimeWindow{Start: now.Add(-cfg.Monitoring.Window), End: now},
		Percentile:   cfg.Monitoring.Percentile,
		StepInterval: cfg.Monitoring.Step,
	})
	if err != nil {
		return nil, fmt.Errorf("collecting dynamic utilisation: %w", err)
	}
	return overlay, nil
}

// resolveCollector creates a PrometheusCollector by either using the
// explicit --monitoring-url or by auto-discovering a Prometheus-compatible
// service in the Kubernetes cluster, grounded on the teacher's
// resolveCollector (cmd/discovery.go). When running outside the cluster
// (kubeconfig mode) it sets up a port-forward tunnel to the discovered
// service; the returned cleanup closes the tunnel and is nil otherwise.
func resolveCollector(ctx context.Context) (*metrics.PrometheusCollector, func(), error) {
	if cfg.Monitoring.URL != "" {
		c, err := metrics.NewPrometheusCollector(cfg.Monitoring.URL, metrics.WithTimeout(cfg.Monitoring.Timeout))
		return c, nil, err
	}

	if !cfg.Kubernetes.Enabled {
		return nil, nil, clustererr.New("cmd", "no monitoring endpoint configured; provide --monitoring-url or --discover")
	}

	client, restConfig, kubeContext, inCluster, err := kube.NewClient(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Kubernetes: %w", err)
	}

	result, err := kube.Discover(ctx, client, kube.DiscoveryOptions{Namespace: cfg.Kubernetes.DiscoveryNamespace})
	if err != nil {
		return nil, nil, err
	}

	if verbose {
		fmt.Printf("discovered %s at %s (service: %s/%s)\n", result.Type, result.URL, result.Namespace, result.ServiceName)
	}

	if cfg.Cluster.Name == "" && kubeContext != "" {
		cfg.Cluster.Name = kubeContext
	}

	monitoringURL := result.URL
	var cleanup func()

	if !inCluster {
		podName, err := kube.FindPodForService(ctx, client, result.ServiceName, result.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("finding pod for port-forward: %w", err)
		}

		session, err := kube.StartPortForward(restConfig, client, podName, result.Namespace, result.Port)
		if err != nil {
			return nil, nil, fmt.Errorf("starting port-forward: %w", err)
		}

		monitoringURL = fmt.Sprintf("http://127.0.0.1:%d", session.LocalPort)
		cleanup = session.Close

		if verbose {
			fmt.Printf("port-forwarding %s/%s (pod %s) -> %s\n", result.Namespace, result.ServiceName, podName, monitoringURL)
		}
	}

	c, err := metrics.NewPrometheusCollector(monitoringURL, metrics.WithTimeout(cfg.Monitoring.Timeout))
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, err
	}
	return c, cleanup, nil
}

// resolveNodeCosts resolves internal/cloudnode.NodeCosts for every node
// tagged with an EC2 instance type, when cfg.Cloud.EnrichCost is set; it
// returns a nil map (rendering no $/mo column at all) when cost
// enrichment is disabled, so callers can pass the result straight to
// Formatter.Nodes unconditionally.
func resolveNodeCosts(ctx context.Context, cd *cluster.ClusterData) (map[int]cloudnode.NodeCost, error) {
	if !cfg.Cloud.EnrichCost {
		return nil, nil
	}
	provider, err := cloudnode.NewEC2Provider(ctx, cfg.Cloud.Region, cfg.Cloud.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("connecting to AWS for cost enrichment: %w", err)
	}
	return cloudnode.NodeCosts(ctx, provider, cd.Nodes.Elems())
}
