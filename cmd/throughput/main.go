package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/ethpandaops/throughput/internal/profiler"
	"github.com/ethpandaops/throughput/internal/version"
	"github.com/ethpandaops/throughput/internal/workload"
)

var (
	cfgFile       string
	logLevel      string
	tag           string
	events        int
	eventInterval time.Duration
	forceReport   bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	defaults := workload.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "throughput",
		Short: "In-process throughput profiler sanity check",
		Long: `throughput records a steady stream of incoming and outgoing
events under a single tag and lets the profiler report the observed
per-second rates every measurement window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.Flags().StringVar(
		&cfgFile, "config", "",
		"path to config file (optional)",
	)
	cmd.Flags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)
	cmd.Flags().StringVar(
		&tag, "tag", defaults.Tag,
		"tag to record events under",
	)
	cmd.Flags().IntVar(
		&events, "events", defaults.Events,
		"number of incoming/outgoing event pairs to record",
	)
	cmd.Flags().DurationVar(
		&eventInterval, "event-interval", defaults.Interval,
		"pause between event pairs",
	)
	cmd.Flags().BoolVar(
		&forceReport, "force-report", false,
		"start the reporter even when the config disables it",
	)

	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func loadConfig() (*profiler.Config, error) {
	if cfgFile == "" {
		return profiler.DefaultConfig(), nil
	}

	return profiler.LoadConfig(cfgFile)
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flag overrides config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		unix.SIGINT,
		unix.SIGTERM,
	)
	defer cancel()

	var opts []profiler.Option
	if forceReport {
		opts = append(opts, profiler.WithForceReport())
	}

	p, err := profiler.New(log, cfg, opts...)
	if err != nil {
		return fmt.Errorf("creating profiler: %w", err)
	}

	gen, err := workload.New(log, workload.Config{
		Tag:      tag,
		Events:   events,
		Interval: eventInterval,
	}, p)
	if err != nil {
		return fmt.Errorf("creating workload: %w", err)
	}

	log.WithField("version", version.Full()).Info("Starting throughput profiler")

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting profiler: %w", err)
	}

	_, runErr := gen.Run(ctx)

	log.Info("Shutting down throughput profiler")

	if err := p.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
		return fmt.Errorf("stopping profiler: %w", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("running workload: %w", runErr)
	}

	log.Info("Shutdown complete")

	return nil
}
