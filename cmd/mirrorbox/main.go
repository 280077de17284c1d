package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mirrorbox/mirrorbox/internal/daemon"
	"github.com/mirrorbox/mirrorbox/internal/logging"
	"github.com/mirrorbox/mirrorbox/internal/version"
)

var red = color.New(color.FgHiRed, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:   "mirrorbox SOURCE_DIR REPLICA_DIR INTERVAL_SECONDS LOG_FILE",
	Short: "One-way periodic directory mirroring",
	Long: "MirrorBox keeps a replica directory identical to a source directory.\n" +
		"Every pass copies new and changed files by content fingerprint, then\n" +
		"removes replica entries the source no longer has.",
	Args:    cobra.ExactArgs(4),
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, err := parseInterval(args[2])
		if err != nil {
			return err
		}

		cfg := &daemon.Config{
			SourceDir:   args[0],
			ReplicaDir:  args[1],
			Interval:    interval,
			LogFile:     args[3],
			Excludes:    viper.GetStringSlice("exclude"),
			ExcludeFrom: viper.GetString("exclude_from"),
			Once:        viper.GetBool("once"),
			DryRun:      viper.GetBool("dry_run"),
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level, err := logging.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return err
		}

		logger, logClose, err := logging.Setup(cfg.LogFile, level, viper.GetBool("no_color"))
		if err != nil {
			return fmt.Errorf("logging setup: %w", err)
		}
		defer logClose.Close()
		slog.SetDefault(logger)

		// arguments check out, errors past this point are runtime failures
		cmd.SilenceUsage = true
		showHeader()

		d, err := daemon.New(cfg, logger)
		if err != nil {
			return err
		}

		defer logger.Info("bye")
		return d.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringSliceP("exclude", "x", nil, "gitignore-style pattern to exclude, repeatable")
	rootCmd.Flags().String("exclude-from", "", "file with one exclusion pattern per line")
	rootCmd.Flags().Bool("once", false, "run a single pass and exit")
	rootCmd.Flags().Bool("dry-run", false, "log planned actions without touching the replica")
	rootCmd.Flags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.Flags().Bool("no-color", false, "disable colored console output")
}

func bindFlags(cmd *cobra.Command) error {
	bindings := map[string]string{
		"exclude":      "exclude",
		"exclude_from": "exclude-from",
		"once":         "once",
		"dry_run":      "dry-run",
		"log_level":    "log-level",
		"no_color":     "no-color",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	viper.SetEnvPrefix("MIRRORBOX")
	viper.AutomaticEnv()
	return nil
}

// parseInterval reads the positional interval argument as a whole
// number of seconds.
func parseInterval(arg string) (time.Duration, error) {
	secs, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("interval must be a whole number of seconds, got %q", arg)
	}
	if secs < 1 {
		return 0, fmt.Errorf("interval must be positive, got %d", secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(version.ShortWithApp())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}
