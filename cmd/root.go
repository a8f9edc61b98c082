package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yiannist/clusterfit/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "clusterfit",
	Short: "Cluster placement and balancing engine for Ganeti-style VM clusters",
	Long: `ClusterFit scores a cluster of nodes and instances, finds the single
best rebalancing move at each step (hbal), and places new instances across
nodes and node groups under a tiered capacity policy (hail).

It reads a cluster snapshot from a text file or a remote-API JSON bundle,
optionally overlaid with dynamic utilisation collected from Prometheus,
and renders its decisions as a table, JSON, or an executable command
script.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command. It exits with status 2 when a flag
// cannot be parsed and with status 1 on any other error.
func Execute() {
	flagErr := false
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		flagErr = true
		return err
	})
	if err := rootCmd.Execute(); err != nil {
		if flagErr {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: clusterfit.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	// Global flags that map to config
	rootCmd.PersistentFlags().String("monitoring-url", "", "Prometheus-compatible endpoint for the dynamic-utilisation overlay")
	rootCmd.PersistentFlags().BoolP("discover", "d", false, "auto-discover the monitoring endpoint from Kubernetes")
	rootCmd.PersistentFlags().String("kubeconfig", "", "path to kubeconfig file")
	rootCmd.PersistentFlags().String("kube-context", "", "Kubernetes context name")
	rootCmd.PersistentFlags().String("aws-region", "", "AWS region for cloud node-type enrichment")
	rootCmd.PersistentFlags().Bool("enrich-cost", false, "annotate allocation reports with on-demand EC2 pricing")
	rootCmd.PersistentFlags().String("output-format", "", "table, json, or script")

	_ = viper.BindPFlag("monitoring.url", rootCmd.PersistentFlags().Lookup("monitoring-url"))
	_ = viper.BindPFlag("kubernetes.enabled", rootCmd.PersistentFlags().Lookup("discover"))
	_ = viper.BindPFlag("kubernetes.kubeconfig", rootCmd.PersistentFlags().Lookup("kubeconfig"))
	_ = viper.BindPFlag("kubernetes.context", rootCmd.PersistentFlags().Lookup("kube-context"))
	_ = viper.BindPFlag("cloud.region", rootCmd.PersistentFlags().Lookup("aws-region"))
	_ = viper.BindPFlag("cloud.enrich_cost", rootCmd.PersistentFlags().Lookup("enrich-cost"))
	_ = viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output-format"))
}

func loadConfig() error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("clusterfit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.clusterfit")
	}

	// Environment variable overrides
	viper.SetEnvPrefix("CLUSTERFIT")
	viper.AutomaticEnv()

	// Read config file (not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return cfg.Validate()
}
