package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tubebot/internal/app"
	"tubebot/internal/poller"
)

var (
	cfgPath string
	envFile string
	dryRun  bool
)

const stopTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "tubebot",
	Short: "Announce new YouTube uploads from a channel feed",
	Long: `tubebot polls a YouTube channel feed and announces every new video,
short and live stream exactly once to Telegram, a webhook or the log.

On first start the existing feed is recorded without announcing it.

Example usage:
  tubebot                          # run the service with ./config.yaml
  tubebot run --config /etc/tubebot/config.yaml
  tubebot seed                     # record the current feed, announce nothing
  tubebot check --dry-run          # one poll cycle, log instead of sending
  tubebot count                    # print the number of seen videos`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	RunE:          runService,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling service until interrupted",
	RunE:  runService,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Record every item currently in the feed without announcing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(true, func(ctx context.Context, a *app.App) error {
			return report(cmd, a.Seed(ctx))
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single poll cycle and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(false, func(ctx context.Context, a *app.App) error {
			return report(cmd, a.RunOnce(ctx))
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of seen item ids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(true, func(ctx context.Context, a *app.App) error {
			n, err := a.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "config file (YAML or JSON); empty means environment only")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config (missing is fine)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "log announcements instead of sending them")

	rootCmd.AddCommand(runCmd, seedCmd, checkCmd, countCmd)
}

func defaultConfigPath() string {
	if p := os.Getenv("TUBEBOT_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runService(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, DotEnv: envFile, DryRun: dryRun})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	runErr := a.Err()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func oneShot(offline bool, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, DotEnv: envFile, DryRun: dryRun, Offline: offline})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func report(cmd *cobra.Command, out poller.Outcome) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: fetched=%d known=%d delivered=%d failed=%d seen=%d (+%d) in %s\n",
		out.Mode, out.Fetched, out.Known, out.Delivered, out.Failed, out.After, out.Delta(),
		out.Duration.Round(time.Millisecond))
	if out.Err != nil {
		return out.Err
	}
	if out.Failed > 0 {
		return fmt.Errorf("%d announcement(s) failed; they will be retried next cycle", out.Failed)
	}
	return nil
}
