package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KeshavPeri/tickle/internal/app"
	"github.com/KeshavPeri/tickle/internal/common"
	"github.com/KeshavPeri/tickle/internal/server"
	"github.com/KeshavPeri/tickle/internal/services/universe"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		concurrency int
		force       bool
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build market snapshots for the whole universe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Batch.Concurrency = concurrency
			}
			if metricsFile != "" {
				cfg.Batch.MetricsFile = metricsFile
			}

			a, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := a.RunBatch(ctx, force)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "done=%d built=%d skipped=%d failed=%d elapsed=%s\n",
					res.Done, res.Built, res.Skipped, res.Failed, res.Elapsed.Round(time.Millisecond))
				failed := make([]string, 0, len(res.Failures))
				for t := range res.Failures {
					failed = append(failed, t)
				}
				sort.Strings(failed)
				for _, t := range failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", t, res.Failures[t])
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count (default [batch] concurrency)")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild snapshots that are already fresh")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write a Prometheus textfile after the run")
	return cmd
}

func newDailyCmd(opts *rootOptions) *cobra.Command {
	var (
		date  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Select the day's ticker and refresh its snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := common.ParseDay(date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				day = parsed
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			res, err := a.RunDaily(ctx, day, force)
			if err != nil {
				return err
			}
			source := ""
			if res.Snapshot != nil {
				source = res.Snapshot.Source
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s rebuilt=%t source=%s\n", res.Day, res.Ticker, res.Rebuilt, source)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to select (YYYY-MM-DD, default today UTC)")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild the snapshot even when fresh")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the universe, the daily mapping and the mapped snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ValidateData(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "data OK")
			return nil
		},
	}
}

func newUniverseCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "Manage the ticker universe",
	}

	var (
		target    int
		out       string
		sourceURL string
	)
	build := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the universe from the S&P 500 constituents table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := common.NewLoggerFromConfig(cfg.Logging)
			if out == "" {
				out = cfg.Data.Universe
			}

			bopts := []universe.BuilderOption{universe.WithBuilderLogger(logger)}
			if sourceURL != "" {
				bopts = append(bopts, universe.WithSourceURL(sourceURL))
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			stocks, err := universe.NewBuilder(bopts...).Build(ctx, target)
			if err != nil {
				return err
			}
			if err := universe.Save(out, stocks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d stocks to %s\n", len(stocks), out)
			return nil
		},
	}
	build.Flags().IntVar(&target, "target", universe.DefaultTarget, "number of stocks to keep")
	build.Flags().StringVar(&out, "out", "", "output path (default [data] universe)")
	build.Flags().StringVar(&sourceURL, "source-url", "", "constituents page URL")
	cmd.AddCommand(build)
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			common.PrintBanner(cfg, a.Logger)
			a.StartWarmCache()
			a.StartScheduler()

			srv := server.NewServer(a)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			select {
			case <-ctx.Done():
				a.Logger.Info().Msg("Shutdown signal received")
			case err := <-errCh:
				return fmt.Errorf("HTTP server failed: %w", err)
			}

			common.PrintShutdownBanner(a.Logger)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
			}
			a.Logger.Info().Msg("Server stopped")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			common.LoadVersionFromFile()
			fmt.Fprintf(cmd.OutOrStdout(), "tickle %s\n", common.CurrentBuild())
		},
	}
}
