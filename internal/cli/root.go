// Package cli provides the command-line interface for mastodon2memos.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	debug     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:          "mastodon2memos",
	Short:        "Relay tagged Mastodon posts into Memos",
	Long:         "mastodon2memos polls your Mastodon account for posts tagged #memos, saves each one as a Memos note, and then deletes or unboosts the original.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mastodon2memos %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", config.DefaultConfigDir, "config directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the global flags.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}
}

func stderrLogger() (*slog.Logger, error) {
	return newLogger(os.Stderr)
}
