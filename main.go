package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/internal/container"
	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/internal/schedule"
	"github.com/ZacxDev/reelbatch/pkg/videoprocessor"
)

var (
	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "reelbatch",
		Short: "Spreadsheet-driven batch video composition",
		Long: `reelbatch reads rows flagged for execution from a spreadsheet, downloads the
referenced image, video and audio, composes them with ffmpeg and publishes the
result, writing the link back to the sheet when the source allows it.

Examples:
  # Process every flagged row once
  reelbatch run --sheet 1AbC...xyz

  # Show what each flagged row would produce without rendering
  reelbatch plan --sheet 1AbC...xyz

  # Keep processing every five minutes
  reelbatch schedule --cron "*/5 * * * *"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrapf(err, "load %s", envFile)
			}

			configPath, _ := cmd.Flags().GetString("config")
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}

			verbose, _ := cmd.Flags().GetBool("verbose")
			format, _ := cmd.Flags().GetString("log-format")
			level := ""
			if verbose {
				level = "debug"
			}
			sheetID, _ := cmd.Flags().GetString("sheet")
			selector, _ := cmd.Flags().GetString("range")
			cfg = loaded.WithLogging(level, format).WithSource(sheetID, selector)

			logger, err = logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: os.Stderr,
			})
			return err
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Process every flagged row once",
		Long: fmt.Sprintf(`Process every row whose first column holds an execution marker.

Output containers are chosen from the file name extension:
%s`, formatSupportedContainers()),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			progress := newProgress(os.Stderr)
			proc, err := videoprocessor.New(ctx, cfg, logger, videoprocessor.WithObserver(progress))
			if err != nil {
				return err
			}
			defer proc.Close()

			result, err := proc.RunOnce(ctx)
			progress.Finish()
			if len(result.Results) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderResults(result))
			}
			if err != nil {
				return err
			}
			if result.TotalProcessed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows flagged for execution.")
			}
			return nil
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Show the composition each flagged row would get",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := videoprocessor.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			planned, err := proc.Plan(cmd.Context())
			if err != nil {
				return err
			}
			if len(planned) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rows flagged for execution.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(planned))
			return nil
		},
	}

	scheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Process flagged rows on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("cron")
			now, _ := cmd.Flags().GetBool("now")
			scheduled := cfg.WithSchedule(expr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			proc, err := videoprocessor.New(ctx, scheduled, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			opts := []schedule.Option{schedule.WithLogger(logger)}
			if now {
				opts = append(opts, schedule.WithRunOnStart())
			}
			s, err := schedule.New(scheduled.Schedule.Cron, proc.Tick, opts...)
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recent item results",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			proc, err := videoprocessor.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer proc.Close()

			records, err := proc.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
			return nil
		},
	}
)

func formatSupportedContainers() string {
	var sb strings.Builder
	for _, ext := range container.Extensions() {
		profile, _ := container.Get(ext)
		sb.WriteString(fmt.Sprintf("- %s (%s/%s)\n", ext, profile.GetVideoCodec(), profile.GetAudioCodec()))
	}
	return sb.String()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before the config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console or json)")
	rootCmd.PersistentFlags().String("sheet", "", "Spreadsheet id (overrides source.spreadsheet_id)")
	rootCmd.PersistentFlags().String("range", "", "Sheet name for csv sources, A1 range for the Sheets API")

	scheduleCmd.Flags().String("cron", "", "Cron expression (overrides schedule.cron)")
	scheduleCmd.Flags().Bool("now", false, "Run once immediately before waiting for the schedule")

	historyCmd.Flags().IntP("limit", "n", 20, "Number of results to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(newCacheCommand())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
