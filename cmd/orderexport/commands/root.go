package commands

import (
	"context"
	"orderexport/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configName *string
	dumpHttp   *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "orderexport",
	Short: "orderexport exports your retailer order history to CSV.",
	// main reports the error after telemetry is flushed
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configName = rootCmd.PersistentFlags().String("config", "orderexport.json5", "The config file, searched for from the working directory upwards.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every request/response pair to this directory.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
