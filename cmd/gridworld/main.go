package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/gridworld/pkg/config"
	"github.com/boristopalov/gridworld/pkg/environment"
	"github.com/boristopalov/gridworld/pkg/experiment"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/boristopalov/gridworld/pkg/messaging"
	"github.com/boristopalov/gridworld/pkg/server"
)

var (
	configPath string
	logger     = logging.New("APP", logging.ColorApp, os.Stderr)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gridworld",
		Short:         "Gridworld runs agents on a walled grid and serves the grid to remote agents over websockets.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "experiment config file (YAML); the built-in default when empty")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment and report per-episode returns",
		RunE:  runExperiment,
	}
	runCmd.Flags().Int("episodes", 0, "number of episodes (overrides the config)")
	runCmd.Flags().String("policy", "", "random, shortest-path or llm (overrides the config)")
	runCmd.Flags().String("stats", "", "write per-episode CSV statistics to this file")
	runCmd.Flags().String("chart", "", "write an HTML return chart to this file")
	runCmd.Flags().String("watch", "", "also serve /watch on this address while the experiment runs")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured world over websockets",
		RunE:  serve,
	}
	serveCmd.Flags().String("addr", "", "listen address (overrides the config)")

	validateCmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Report every problem in a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  validate,
	}

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd, serveCmd, validateCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.ExperimentConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		logger.Warn("interrupted, shutting down")
		cancel()
	}()
	return ctx, cancel
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("episodes"); n > 0 {
		cfg.Episodes = n
	}
	if p, _ := cmd.Flags().GetString("policy"); p != "" {
		cfg.Policy.Type = p
	}
	if path, _ := cmd.Flags().GetString("stats"); path != "" {
		cfg.Output.StatsCSV = path
	}
	if path, _ := cmd.Flags().GetString("chart"); path != "" {
		cfg.Output.Chart = path
	}

	ctx, cancel := signalContext()
	defer cancel()

	broker := messaging.NewBroker()
	defer broker.Reset()

	expLogger := logging.New("EXPERIMENT", logging.ColorExperiment, os.Stderr, logging.WithLevel(logger.Level()))
	exp, err := experiment.FromConfig(ctx, cfg, broker, expLogger)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	if addr, _ := cmd.Flags().GetString("watch"); addr != "" {
		srv, err := server.New(cfg.World, server.WithBroker(broker))
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				logger.Errorf("watch server: %v", err)
			}
		}()
	}

	logger.Infof("starting run %s (%s)", exp.GetID(), cfg.Name)
	if err := exp.Run(ctx); err != nil {
		return fmt.Errorf("experiment failed: %w", err)
	}
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	srv, err := server.New(cfg.World, server.WithLogger(
		logging.New("SERVER", logging.ColorServer, os.Stderr, logging.WithLevel(logger.Level()))))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func validate(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	problems := 0
	if err := cfg.Validate(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.WrappedErrors() {
				fmt.Fprintf(cmd.OutOrStdout(), "config: %v\n", e)
				problems++
			}
		}
	}
	if _, err := cfg.World.Build(); err != nil {
		var cfgErr *environment.ConfigError
		if !errors.As(err, &cfgErr) {
			return err
		}
		for _, v := range cfgErr.Violations() {
			fmt.Fprintf(cmd.OutOrStdout(), "world: %v\n", v)
			problems++
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
	return nil
}
