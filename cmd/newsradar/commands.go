package main

import (
	"github.com/spf13/cobra"

	"NewsRadar/internal/app"
	"NewsRadar/internal/config"
	"NewsRadar/internal/logging"
	"NewsRadar/internal/preview"
)

type runFlags struct {
	topics []string
	dryRun bool
}

func runCmd(flags *globalFlags) *cobra.Command {
	run := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, classify and deliver new headlines once",
		Example: `  newsradar run
  newsradar run --topic crypto --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, flags, run)
		},
	}
	cmd.Flags().StringSliceVarP(&run.topics, "topic", "t", nil, "Only process these topics (repeatable)")
	cmd.Flags().BoolVar(&run.dryRun, "dry-run", false, "Build batches but do not send or commit")
	return cmd
}

func previewCmd(flags *globalFlags) *cobra.Command {
	var (
		topics []string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render the batches the next run would send",
		Long: `preview runs the pipeline without delivering anything and draws the
resulting cards in the terminal. The delivery history is read but never
written, and no webhook is required.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(flags)
			logger := logging.NewWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger, app.Options{DryRun: true, Topics: topics})
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Run(cmd.Context())
			if err != nil {
				return err
			}

			r := preview.Renderer{Width: width}
			for _, t := range report.Topics {
				if err := r.Write(cmd.OutOrStdout(), t.Batches); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "Only preview these topics (repeatable)")
	cmd.Flags().IntVar(&width, "width", 80, "Card width in columns")
	return cmd
}

// runPipeline exits non-zero only for configuration errors or an
// interrupted run; delivery failures are logged and absorbed.
func runPipeline(cmd *cobra.Command, flags *globalFlags, run *runFlags) error {
	cfg := loadConfig(flags)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cmd.Context(), cfg, logger, app.Options{DryRun: run.dryRun, Topics: run.topics})
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Run(cmd.Context())
	if err != nil {
		return err
	}

	for _, t := range report.Topics {
		if t.Err != nil {
			logger.Warn("topic finished with errors", "topic", t.Topic, "error", t.Err)
		}
	}
	return nil
}

func loadConfig(flags *globalFlags) config.Config {
	cfg := config.Load(flags.configPath)
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	return cfg
}
