package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/ppiankov/mastodon2memos/internal/mastodon"
	"github.com/ppiankov/mastodon2memos/internal/memos"
	"github.com/ppiankov/mastodon2memos/internal/relay"
	"github.com/ppiankov/mastodon2memos/internal/store"
	"github.com/spf13/cobra"
)

var (
	runOnce   bool
	runDryRun bool
	runEvery  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll Mastodon and relay tagged posts to Memos",
	RunE:  runAction,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single poll and exit")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "assemble notes without sending them or touching Mastodon")
	runCmd.Flags().StringVar(&runEvery, "every", "", "poll interval, overrides relay.interval (e.g. 60s, 5m)")
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	interval, err := parseRunEvery(runEvery)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := stderrLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := cfg.Relay.RequestTimeout.Duration
	src, err := mastodon.New(cfg.Source.URL, cfg.Source.Token, timeout)
	if err != nil {
		return fmt.Errorf("mastodon client: %w", err)
	}
	sink, err := memos.New(cfg.Sink.URL, cfg.Sink.Token, timeout)
	if err != nil {
		return fmt.Errorf("memos client: %w", err)
	}

	redactor, err := cfg.Redactor()
	if err != nil {
		return err
	}

	account, err := src.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("authenticate with %s: %w", cfg.Source.URL, err)
	}
	logger.Info("authenticated", "account", account.Acct, "id", account.ID)

	opts := relay.Options{
		AccountID:         account.ID,
		TriggerTag:        cfg.Source.TriggerTag,
		PageSize:          cfg.Source.PageSize,
		Visibility:        memos.Visibility(cfg.Sink.Visibility),
		Tags:              cfg.Relay.Tags,
		Interval:          cfg.Relay.Interval.Duration,
		RateLimitCooldown: cfg.Relay.RateLimitCooldown.Duration,
		DryRun:            runDryRun,
		Redactor:          redactor,
	}
	if interval > 0 {
		opts.Interval = interval
	}
	if runOnce {
		opts.MaxTicks = 1
	}

	d, err := relay.NewDispatcher(src, sink, opts, logger)
	if err != nil {
		return err
	}

	if path := cfg.Storage.JournalPath(); path != "" && !runDryRun {
		db, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = db.Close() }()

		if n, err := db.PruneOld(ctx, cfg.Storage.RetainDays); err != nil {
			logger.Warn("prune journal failed", "err", err)
		} else if n > 0 {
			logger.Info("pruned journal", "rows", n, "retain_days", cfg.Storage.RetainDays)
		}
		d.SetJournal(db)
	}

	err = d.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("relay stopped")
		return nil
	}
	return err
}

func parseRunEvery(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	interval, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse --every: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("--every must be greater than zero")
	}
	return interval, nil
}
