// v0
// cmd/buildingrl/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"nrgchamp/buildingrl/internal/app"
	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/config"
	"nrgchamp/buildingrl/internal/env"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:           "buildingrl",
		Short:         "Multi-floor building simulator and reinforcement-learning environment.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(trainCmd(), serveCmd(), inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		bootstrap.Error("command_failed", slog.Any("err", err))
		os.Exit(1)
	}
}

type overrides struct {
	episodes  int
	algorithm string
	seed      uint64
}

func registerOverrides(cmd *cobra.Command) *overrides {
	o := &overrides{}
	cmd.Flags().IntVar(&o.episodes, "episodes", 0, "number of training episodes (0 keeps the configured value)")
	cmd.Flags().StringVar(&o.algorithm, "algorithm", "", "learner: qlearning, actorcritic, reinforce or ppo")
	cmd.Flags().Uint64Var(&o.seed, "seed", 0, "random seed (0 keeps the configured value)")
	return o
}

func loadConfig(o *overrides) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	if o == nil {
		return cfg, nil
	}
	if o.episodes > 0 {
		cfg.Episodes = o.episodes
	}
	if o.algorithm != "" {
		cfg.Algorithm = o.algorithm
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	return cfg, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func trainCmd() *cobra.Command {
	var o *overrides
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a learner for the configured number of episodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			application, err := app.New(cfg, os.Stdout)
			if err != nil {
				return fmt.Errorf("app init: %w", err)
			}
			defer application.Close()

			ctx, stop := signalContext(cmd)
			defer stop()
			_, err = application.Train(ctx)
			return err
		},
	}
	o = registerOverrides(cmd)
	return cmd
}

func serveCmd() *cobra.Command {
	var autopilot bool
	var o *overrides
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the building over HTTP and stream snapshots to the display sinks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			application, err := app.New(cfg, os.Stdout)
			if err != nil {
				return fmt.Errorf("app init: %w", err)
			}
			defer application.Close()

			logger := application.Logger()
			logger.Info("service_boot",
				slog.String("listen_address", cfg.ListenAddress),
				slog.String("log_path", cfg.LogFilePath),
				slog.String("properties_path", cfg.PropertiesPath),
				slog.String("run_id", application.RunID()),
				slog.Bool("autopilot", autopilot),
			)
			ctx, stop := signalContext(cmd)
			defer stop()
			if err := application.Serve(ctx, autopilot); err != nil {
				return err
			}
			logger.Info("service_stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&autopilot, "autopilot", true, "let the learner act at the configured step interval")
	o = registerOverrides(cmd)
	return cmd
}

type inspection struct {
	Snapshot    building.Snapshot `json:"snapshot"`
	NumActions  int               `json:"numActions"`
	Observation []float64         `json:"observation"`
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the initial building state and its normalised observation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			b, err := app.NewBuilding(cfg.OutsideTemperature, cfg.Floors)
			if err != nil {
				return err
			}
			e, err := env.New(b, env.WithMaxSteps(cfg.MaxSteps))
			if err != nil {
				return err
			}
			snap := e.Reset().Snapshot()
			obs := env.Observation(snap)
			out := inspection{
				Snapshot:    snap,
				NumActions:  e.NumActions(),
				Observation: mat.Col(nil, 0, obs),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
