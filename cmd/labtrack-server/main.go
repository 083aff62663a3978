package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/labtrack/internal/app"
	"github.com/BrandonDHaskell/labtrack/internal/config"
	"github.com/BrandonDHaskell/labtrack/internal/db"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/snapshot"
	"github.com/BrandonDHaskell/labtrack/internal/labtrack/store/sqlite"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "labtrack-server:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "labtrack-server",
		Short:         "Lab access ledger: badge scans, occupancy and reader health",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(newMigrateCmd(&configPath), newExportCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, *cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	logger.Info("labtrack starting",
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"backend", cfg.Database.Backend,
		"events", a.Ledger.Len(),
	)
	if err := a.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("labtrack stopped")
	return nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cmd.Context(), db.Config{Path: cfg.Database.Path, Env: cfg.Database.Env})
			if err != nil {
				logger.Error("migrate failed", "error", err)
				return err
			}
			defer sqlDB.Close()
			logger.Info("migrations applied", "path", cfg.Database.Path)
			return nil
		},
	}
}

func newExportCmd(configPath *string) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the latest stored snapshot as JSON or protobuf",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "protobuf" {
				return fmt.Errorf("--format must be json or protobuf (got %q)", format)
			}
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			sqlDB, err := db.Open(cmd.Context(), db.Config{Path: cfg.Database.Path, Env: cfg.Database.Env})
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			writer := db.NewWorker(sqlDB)
			defer writer.Close()

			meta, events, err := sqlite.NewSnapshotStore(sqlDB, writer).LatestSnapshot(cmd.Context())
			if err != nil {
				logger.Error("export failed", "error", err)
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "protobuf" {
				_, err = w.Write(snapshot.MarshalBinary(events))
			} else {
				err = snapshot.WriteJSON(w, events)
			}
			if err != nil {
				return err
			}
			logger.Info("snapshot exported", "snapshot_id", meta.ID, "events", len(events), "format", format)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or protobuf")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}
