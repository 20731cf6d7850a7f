package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "blockstream",
		Short: "blockstream - semantic blocks for streamed assistant messages",
		Long:  "blockstream parses assistant messages into typed content blocks, follows them while they stream and resolves stored highlights over the rendered text",
		Example: `  blockstream serve
  blockstream parse reply.md
  blockstream replay reply.md --chunk 7
  blockstream render reply.md --highlights highlights.json`,
		Version:       currentBuild().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, "")
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Env file with configuration")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(
		newServeCmd(&flags),
		newParseCmd(&flags),
		newReplayCmd(&flags),
		newRenderCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), currentBuild().Details())
		},
	}
}
