package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/ppiankov/mastodon2memos/internal/mastodon"
	"github.com/ppiankov/mastodon2memos/internal/memos"
	"github.com/ppiankov/mastodon2memos/internal/store"
	"github.com/spf13/cobra"
)

const healthWindowDays = 30

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and the journal",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Config dir is optional: env alone is enough.
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printInfo("config directory %s not found, using defaults", configDir)
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config and credentials
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config (trigger #%s, %d posts per poll, every %v, %s notes)",
		cfg.Source.TriggerTag, cfg.Source.PageSize, cfg.Relay.Interval.Duration, cfg.Sink.Visibility)

	timeout := cfg.Relay.RequestTimeout.Duration

	// Mastodon
	src, err := mastodon.New(cfg.Source.URL, cfg.Source.Token, timeout)
	if err == nil {
		var account *mastodon.Account
		account, err = src.VerifyCredentials(ctx)
		if err == nil {
			printCheck(true, "mastodon %s as @%s (id %s)", cfg.Source.URL, account.Acct, account.ID)
		}
	}
	if err != nil {
		printCheck(false, "mastodon: %v", err)
		ok = false
	}

	// Memos
	sink, err := memos.New(cfg.Sink.URL, cfg.Sink.Token, timeout)
	if err == nil {
		var user *memos.User
		user, err = sink.CurrentUser(ctx)
		if err == nil {
			printCheck(true, "memos %s as %s", cfg.Sink.URL, user.Username)
		}
	}
	if err != nil {
		printCheck(false, "memos: %v", err)
		ok = false
	}

	// Journal
	if path := cfg.Storage.JournalPath(); path == "" {
		printInfo("journal disabled")
	} else if db, err := store.Open(path); err != nil {
		printCheck(false, "journal: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		printCheck(true, "journal %s", path)
		checkDeliveryHealth(ctx, db)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// checkDeliveryHealth prints info lines about recent failures. Never fails.
func checkDeliveryHealth(ctx context.Context, db *store.Store) {
	since := time.Now().AddDate(0, 0, -healthWindowDays)
	sum, err := db.Summary(ctx, since)
	if err != nil || sum.Total == 0 {
		return // no data yet, skip
	}

	if sum.LastDelivery.IsZero() {
		printInfo("no successful delivery in %d days (%d attempts)", healthWindowDays, sum.Total)
	}
	if sum.MarkerFailed > 0 {
		printInfo("%d notes saved but the post could not be deleted or unboosted, they may be relayed again", sum.MarkerFailed)
	}
	if sum.SendFailed > 0 {
		printInfo("%d sends failed in %d days (see 'mastodon2memos history --outcome send_failed')", sum.SendFailed, healthWindowDays)
	}
	if sum.RateLimited > 0 {
		printInfo("memos rate limited the relay %d times in %d days", sum.RateLimited, healthWindowDays)
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
