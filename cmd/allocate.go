package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yiannist/clusterfit/internal/allocate"
	"github.com/yiannist/clusterfit/internal/cloudnode"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/clustererr"
	"github.com/yiannist/clusterfit/internal/format"
	"github.com/yiannist/clusterfit/internal/group"
	"github.com/yiannist/clusterfit/internal/loader"
	"github.com/yiannist/clusterfit/internal/textfmt"
	"github.com/yiannist/clusterfit/internal/units"
)

var allocateData dataSourceFlags

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Place instances of a given shape across the cluster (hail)",
	Long: `Reads a cluster snapshot and an instance shape (vcpus, memory, disk,
disk template), then either places a single instance of that shape onto
the best-scoring node, or repeatedly allocates and shrinks the shape
tier by tier until capacity runs out, reporting how many instances fit
at each tier.`,
	RunE: runAllocate,
}

func init() {
	f := allocateCmd.Flags()
	bindDataSourceFlags(f, &allocateData)

	f.Int("vcpus", 1, "instance vcpu count")
	f.String("memory", "", "instance memory, with an optional unit suffix (e.g. 4g, 4096m)")
	f.String("disk", "", "instance disk size, with an optional unit suffix (e.g. 100g)")
	f.String("disk-template", "", "disk template (plain, drbd, file, shared-file, block, rbd, ext, diskless)")
	f.Bool("tiered", false, "run tiered allocation (shrink and repeat until capacity runs out) instead of a single placement")
	f.Bool("across-groups", false, "dispatch allocation across every allocable node group instead of the whole cluster as one pool")
	f.Bool("save-cluster", false, "include the resulting cluster as a text snapshot alongside the report")

	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	f := cmd.Flags()

	raw, err := loadRawCluster(allocateData)
	if err != nil {
		return err
	}

	dynUtil, err := resolveDynUtil(ctx)
	if err != nil {
		return err
	}

	cd, err := loader.Merge(raw, loader.MergeOptions{DynUtil: dynUtil})
	if err != nil {
		return err
	}

	vcpus, _ := f.GetInt("vcpus")

	memoryMiB := cfg.Allocator.MemoryMiB
	if memStr, _ := f.GetString("memory"); memStr != "" {
		v, err := units.ParseUnit(memStr)
		if err != nil {
			return clustererr.New("--memory", "%v", err)
		}
		memoryMiB = v
	}

	diskMiB := cfg.Allocator.DiskMiB
	if diskStr, _ := f.GetString("disk"); diskStr != "" {
		v, err := units.ParseUnit(diskStr)
		if err != nil {
			return clustererr.New("--disk", "%v", err)
		}
		diskMiB = v
	}

	diskTemplate, _ := f.GetString("disk-template")
	if diskTemplate == "" {
		diskTemplate = cfg.Allocator.DiskTemplate
	}

	shape := allocate.Shape{
		Name: "requested",
		Spec: cluster.ISpec{
			RSpec: cluster.RSpec{
				CPU:  vcpus,
				Mem:  memoryMiB,
				Disk: diskMiB,
			},
		},
		DiskTemplate: cluster.DiskTemplate(diskTemplate),
		RunStatus:    cluster.StatusRunning,
	}

	tiered, _ := f.GetBool("tiered")
	acrossGroups, _ := f.GetBool("across-groups")

	switch {
	case tiered:
		result, tiers, err := allocate.AllocateTiered(ctx, cd, shape, cd.IPolicy)
		if err != nil {
			return err
		}
		if err := renderTiers(cmd, result, tiers); err != nil {
			return err
		}
	case acrossGroups:
		result, chosen, err := group.AllocateAcrossGroups(ctx, cd, shape)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "placed on group %d (score %.6f)\n", chosen.GroupIdx, chosen.Score)
		if err := maybeSaveCluster(cmd, result); err != nil {
			return err
		}
	default:
		result, stats, err := allocate.AllocateSingle(ctx, cd, shape)
		if err != nil {
			return fmt.Errorf("allocation failed: %w (%v)", err, stats)
		}
		fmt.Fprintf(os.Stdout, "placed instance on primary=%d secondary=%d (score %.6f)\n",
			result.Primary, result.Secondary, result.Score)
		if err := maybeSaveCluster(cmd, result.ClusterData); err != nil {
			return err
		}
	}

	if cfg.Cloud.EnrichCost {
		if err := printCostEnrichment(ctx, shape); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cost enrichment failed: %v\n", err)
		}
	}

	return nil
}

func renderTiers(cmd *cobra.Command, cd *cluster.ClusterData, tiers []allocate.TierResult) error {
	formatter := format.New(cfg.Output.Format)
	if err := formatter.Tiers(os.Stdout, tiers); err != nil {
		return err
	}
	return maybeSaveCluster(cmd, cd)
}

func maybeSaveCluster(cmd *cobra.Command, cd *cluster.ClusterData) error {
	save, _ := cmd.Flags().GetBool("save-cluster")
	if !save {
		return nil
	}
	return textfmt.Write(os.Stdout, textfmt.FromClusterData(cd))
}

// printCostEnrichment looks up on-demand EC2 pricing for instance types
// that could plausibly host shape, grounded on the teacher's
// runRecommend's "create AWS provider, enrich with pricing" step
// (cmd/recommend.go), repurposed from "every candidate instance family"
// to "report the going rate for the shape just allocated".
func printCostEnrichment(ctx context.Context, shape allocate.Shape) error {
	provider, err := cloudnode.NewEC2Provider(ctx, cfg.Cloud.Region, cfg.Cloud.CacheDir)
	if err != nil {
		return err
	}
	types, err := provider.GetInstanceTypes(ctx, cloudnode.InstanceFilter{
		MinVCPUs: int32(shape.Spec.CPU),
	})
	if err != nil {
		return err
	}
	if _, err := provider.EnrichWithPricing(ctx, types); err != nil {
		return err
	}

	var best *cloudnode.InstanceType
	for i := range types {
		t := types[i]
		if t.MemoryMiB < shape.Spec.Mem {
			continue
		}
		if best == nil || t.MonthlyCost() < best.MonthlyCost() {
			best = &types[i]
		}
	}
	if best == nil {
		fmt.Fprintln(os.Stderr, "no matching instance types found for cost enrichment")
		return nil
	}
	fmt.Fprintf(os.Stdout, "cheapest matching EC2 instance type: %s (%.2f USD/month on-demand)\n", best.InstanceType, best.MonthlyCost())
	return nil
}
