// Package cmd implements the catalog-loader CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/catalog-loader/pkg/client"
	"github.com/Sternrassler/catalog-loader/pkg/logging"
	"github.com/Sternrassler/catalog-loader/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Configuration keys. Each maps to a flag of the same name and to the
// environment variable CATALOG_<KEY> with dashes replaced by underscores.
const (
	keyBaseURL     = "base-url"
	keyResource    = "resource"
	keyItemsKey    = "items-key"
	keyPageSize    = "page-size"
	keyRedisAddr   = "redis-addr"
	keyRPS         = "rps"
	keyBurst       = "burst"
	keyRetries     = "retries"
	keyTimeout     = "timeout"
	keyLogLevel    = "log-level"
	keyLogPretty   = "log-pretty"
	keyMetricsAddr = "metrics-addr"
	keyOutput      = "output"
)

// NewRootCommand builds the command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	defaults := client.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "catalog-loader",
		Short: "Browse and search a remote product catalog page by page",
		Long: "catalog-loader loads a remote product catalog incrementally.\n" +
			"Browse mode pages through the catalog as you scroll; search mode\n" +
			"replaces the list with the results for a term.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				return err
			}
			level, err := logging.ParseLevel(v.GetString(keyLogLevel))
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  level,
				Pretty: v.GetBool(keyLogPretty),
				Output: cmd.ErrOrStderr(),
			})

			if addr := v.GetString(keyMetricsAddr); addr != "" {
				logger := logging.NewLogger(logging.ComponentMetrics)
				go func() {
					if err := metrics.Serve(cmd.Context(), addr, logger); err != nil {
						logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String(keyBaseURL, defaults.BaseURL, "catalog API base URL")
	flags.String(keyResource, defaults.Resource, "catalog collection path")
	flags.String(keyItemsKey, defaults.ItemsKey, "envelope field holding the items")
	flags.Int(keyPageSize, 20, "items per browse page")
	flags.String(keyRedisAddr, "", "Redis address for response revalidation (optional)")
	flags.Float64(keyRPS, defaults.RequestsPerSecond, "client-side request rate limit (0 disables)")
	flags.Int(keyBurst, defaults.Burst, "request burst size")
	flags.Int(keyRetries, defaults.MaxRetries, "transport retries for transient failures")
	flags.Duration(keyTimeout, defaults.Timeout, "per-request timeout")
	flags.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")
	flags.Bool(keyLogPretty, true, "human-readable logs")
	flags.String(keyMetricsAddr, "", "serve Prometheus metrics on this address")
	flags.String(keyOutput, "table", "output format (table, json)")

	for _, key := range []string{
		keyBaseURL, keyResource, keyItemsKey, keyPageSize, keyRedisAddr, keyRPS, keyBurst,
		keyRetries, keyTimeout, keyLogLevel, keyLogPretty, keyMetricsAddr, keyOutput,
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(key)))
	}

	rootCmd.AddCommand(browseCommand(v))
	rootCmd.AddCommand(searchCommand(v))
	rootCmd.AddCommand(interactiveCommand(v))
	rootCmd.AddCommand(exportCommand(v))
	rootCmd.AddCommand(versionCommand())

	return rootCmd
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", cfgFile, err)
	}
	return nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "catalog-loader "+Version)
		},
	}
}
