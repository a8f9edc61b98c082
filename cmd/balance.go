package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yiannist/clusterfit/internal/balance"
	"github.com/yiannist/clusterfit/internal/cluster"
	"github.com/yiannist/clusterfit/internal/format"
	"github.com/yiannist/clusterfit/internal/group"
	"github.com/yiannist/clusterfit/internal/loader"
	"github.com/yiannist/clusterfit/internal/move"
	"github.com/yiannist/clusterfit/internal/textfmt"
)

var balanceData dataSourceFlags

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Find the best sequence of moves to rebalance a cluster (hbal)",
	Long: `Reads a cluster snapshot, scores it, and greedily applies the single
best-scoring rebalancing move at each step until the score stops
improving, a length or score floor is reached, or the best remaining
move's gain is too small to be worth the churn.`,
	RunE: runBalance,
}

func init() {
	f := balanceCmd.Flags()
	bindDataSourceFlags(f, &balanceData)

	f.Float64P("min-score", "e", 1e-9, "stop once the cluster score drops to or below this value")
	f.IntP("max-length", "l", -1, "stop after this many moves (-1 means unlimited)")
	f.Float64P("min-gain", "g", 1e-2, "minimum absolute score gain a move must offer to be taken")
	f.Float64("min-gain-limit", 1e-1, "cluster score below which min-gain is enforced")
	f.Bool("no-disk-moves", false, "disable ReplaceSecondary/ReplacePrimary/ReplaceAndFailover/FailoverAndReplace moves")
	f.Bool("no-instance-moves", false, "disable every move that changes an instance's primary (all variants except ReplaceSecondary)")
	f.Bool("evac-mode", false, "only consider instances on offline or drained nodes")
	f.Bool("restricted-migration", false, "forbid ReplacePrimary, and forbid ReplaceAndFailover unless the instance's primary is drained")
	f.StringSlice("select-instances", nil, "restrict balancing to these instance names")
	f.StringSlice("exclude-instances", nil, "exclude these instance names from balancing")
	f.StringSlice("exclusion-tags", nil, "exclusion-tag prefixes")
	f.StringP("group", "G", "", "node group UUID or name to scope balancing to")
	f.StringP("print-commands", "C", "", "write a gnt-instance command script (stdout if no file given)")
	f.StringP("print-nodes", "p", "", "print the node table; optionally a field list (prefix with + to extend the default)")
	f.Lookup("print-commands").NoOptDefVal = "-"
	f.Lookup("print-nodes").NoOptDefVal = "+"
	f.Bool("print-instances", false, "print the instance table")
	f.StringP("save-cluster", "S", "", "write the final cluster state as a text snapshot")

	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	f := cmd.Flags()

	raw, err := loadRawCluster(balanceData)
	if err != nil {
		return err
	}

	dynUtil, err := resolveDynUtil(ctx)
	if err != nil {
		return err
	}

	selInstances, _ := f.GetStringSlice("select-instances")
	exInstances, _ := f.GetStringSlice("exclude-instances")
	exTags, _ := f.GetStringSlice("exclusion-tags")

	cd, err := loader.Merge(raw, loader.MergeOptions{
		DynUtil:      dynUtil,
		ExTags:       exTags,
		SelInstances: selInstances,
		ExInstances:  exInstances,
	})
	if err != nil {
		return err
	}

	minScore, _ := f.GetFloat64("min-score")
	maxLength, _ := f.GetInt("max-length")
	minGain, _ := f.GetFloat64("min-gain")
	minGainLimit, _ := f.GetFloat64("min-gain-limit")
	noDiskMoves, _ := f.GetBool("no-disk-moves")
	noInstanceMoves, _ := f.GetBool("no-instance-moves")
	evacMode, _ := f.GetBool("evac-mode")
	restrictedMigration, _ := f.GetBool("restricted-migration")
	groupSel, _ := f.GetString("group")

	opts := balance.Options{
		MinScore:     minScore,
		MaxLength:    maxLength,
		MinGain:      minGain,
		MinGainLimit: minGainLimit,
		MoveOptions: move.Options{
			NoDiskMoves:         noDiskMoves,
			NoInstanceMoves:     noInstanceMoves,
			EvacMode:            evacMode,
			RestrictedMigration: restrictedMigration,
		},
	}

	var result *cluster.ClusterData
	var placements []balance.Placement

	if groupSel != "" || cd.Groups.Size() == 1 {
		result, placements, err = group.BalanceGroup(ctx, cd, resolveGroupUUID(cd, groupSel), opts)
	} else {
		result, placements, err = balance.Balance(ctx, cd, opts)
	}
	if err != nil {
		return err
	}

	return renderBalance(ctx, cmd, result, placements)
}

// resolveGroupUUID turns a --group value that may be either a UUID or a
// group name into the UUID group.Select expects; group.Select itself
// only matches by UUID.
func resolveGroupUUID(cd *cluster.ClusterData, sel string) string {
	if sel == "" {
		return ""
	}
	for _, idx := range cd.Groups.Keys() {
		g := cd.Groups.MustFind(idx)
		if g.UUID() == sel || g.Name() == sel {
			return g.UUID()
		}
	}
	return sel
}

// renderBalance prints the node/instance tables and placement trajectory
// in cfg.Output.Format, optionally also emitting a gnt-instance command
// script and/or a text snapshot of the resulting cluster state — grounded
// on the teacher's runRecommend's "create formatter, write report(s),
// write to file if requested" shape (cmd/recommend.go).
func renderBalance(ctx context.Context, cmd *cobra.Command, cd *cluster.ClusterData, placements []balance.Placement) error {
	f := cmd.Flags()
	formatter := format.New(cfg.Output.Format)

	if f.Changed("print-nodes") {
		costs, err := resolveNodeCosts(ctx, cd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cost enrichment failed: %v\n", err)
		}
		spec, _ := f.GetString("print-nodes")
		fields := format.ParseFields(spec, format.DefaultNodeFields)
		if err := formatter.Nodes(os.Stdout, cd, fields, costs); err != nil {
			return err
		}
	}

	if printInstances, _ := f.GetBool("print-instances"); printInstances {
		if err := formatter.Instances(os.Stdout, cd); err != nil {
			return err
		}
	}

	if err := formatter.Placements(os.Stdout, cd, placements); err != nil {
		return err
	}

	if f.Changed("print-commands") {
		cmdFile, _ := f.GetString("print-commands")
		out := os.Stdout
		if cmdFile != "" && cmdFile != "-" {
			file, err := os.Create(cmdFile)
			if err != nil {
				return fmt.Errorf("creating command script %q: %w", cmdFile, err)
			}
			defer file.Close()
			out = file
		}
		script := &format.ScriptFormatter{}
		if err := script.Placements(out, cd, placements); err != nil {
			return err
		}
	}

	if saveFile, _ := f.GetString("save-cluster"); saveFile != "" {
		file, err := os.Create(saveFile)
		if err != nil {
			return fmt.Errorf("creating snapshot %q: %w", saveFile, err)
		}
		defer file.Close()
		if err := textfmt.Write(file, textfmt.FromClusterData(cd)); err != nil {
			return err
		}
	}

	return nil
}
