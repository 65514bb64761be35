// newsradar fetches market headlines, drops the ones already delivered,
// classifies the rest and posts them to a chat webhook.
//
// Usage:
//
//	NEWS_WEBHOOK_URL=https://discord.com/api/webhooks/... newsradar
//	newsradar run --topic tw --topic crypto
//	newsradar preview --config newsradar.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	run := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "newsradar",
		Short: "Deliver new market headlines to a webhook",
		Long: `newsradar is a batch job: every invocation reads the delivery history,
fetches each configured market feed, and posts only headlines that were
never delivered before. Without a subcommand it behaves like "run".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, run)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file (default $NEWSRADAR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text, json")

	rootCmd.AddCommand(runCmd(flags))
	rootCmd.AddCommand(previewCmd(flags))

	return rootCmd
}
