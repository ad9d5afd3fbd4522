package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medstore/m/internal/api"
	"medstore/m/internal/catalog"
	"medstore/m/internal/config"
	"medstore/m/internal/export"
	"medstore/m/internal/jobs"
	"medstore/m/internal/ledger"
	"medstore/m/internal/logging"
	"medstore/m/internal/metrics"
	"medstore/m/internal/seed"
	"medstore/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "medstore",
		Short:         "Medical store inventory and point of sale",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd(), seedCmd(), exportCmd(), alertCmd())
	return cmd
}

// setup loads configuration, installs the logger and opens the store.
func setup(ctx context.Context) (config.Config, *store.Store, func(), error) {
	cfg := config.Load()
	logger, err := logging.Init(cfg.LogMode, cfg.LogFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	for _, w := range cfg.Warnings {
		zap.S().Warn(w)
	}
	s, err := store.Open(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return cfg, nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			zap.S().Warnw("close store", "error", err)
		}
		_ = logger.Sync()
	}
	return cfg, s, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, s, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := seed.LoadMedicines(ctx, s, cfg.SeedCSV); err != nil {
				return err
			}

			scheduler, err := jobs.Schedule(cfg.AlertSchedule, jobs.NewStockAlert(s, cfg.ExpiryAlertDays))
			if err != nil {
				return err
			}
			defer scheduler.Stop()

			handler := api.New(s, cfg, metrics.New())
			if _, err := scheduler.AddFunc("@every 10m", func() {
				if n := handler.SweepSessions(); n > 0 {
					zap.S().Infof("swept %d expired cart sessions", n)
				}
			}); err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              ":" + cfg.HTTPPort,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				zap.S().Infof("medstore server starting on :%s (store=%s)", cfg.HTTPPort, cfg.StoreDriver)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			zap.S().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func seedCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed an empty catalog and initialise the sales ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if csvPath == "" {
				csvPath = cfg.SeedCSV
			}
			added, err := seed.LoadMedicines(cmd.Context(), s, csvPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d medicines\n", added)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Medicine CSV file (defaults to SEED_CSV)")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		dataset string
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the medicines or sales dataset as csv or json",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			meds, err := catalog.New(s).List(cmd.Context())
			if err != nil {
				return err
			}
			sales, err := ledger.New(s).List(cmd.Context())
			if err != nil {
				return err
			}
			file, err := export.Render(export.Dataset(dataset), export.Format(format), meds, sales)
			if err != nil {
				return err
			}

			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), file.Body)
				return err
			}
			if out == "." {
				out = file.Name
			}
			return writeFile(out, file.Body)
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", string(export.Medicines), "Dataset to export (medicines, sales)")
	cmd.Flags().StringVar(&format, "format", string(export.CSV), "Output format (csv, json)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, \".\" for the default file name (stdout when empty)")
	return cmd
}

func writeFile(path, body string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if _, err := io.WriteString(f, body); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func alertCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Run the stock alert once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, cleanup, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if days <= 0 {
				days = cfg.ExpiryAlertDays
			}
			report, err := jobs.NewStockAlert(s, days).Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total=%d low=%d out=%d expired=%d expiring_within_%dd=%d\n",
				report.Counts.Total, report.Counts.Low, report.Counts.Out, report.Counts.Expired,
				days, report.Expiring)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Expiry window in days (defaults to EXPIRY_ALERT_DAYS)")
	return cmd
}
