package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/ppiankov/mastodon2memos/internal/mastodon"
	"github.com/ppiankov/mastodon2memos/internal/relay"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var previewHTML bool

var previewCmd = &cobra.Command{
	Use:   "preview <status-id>",
	Short: "Show the note a status would produce, without sending it",
	Args:  cobra.ExactArgs(1),
	RunE:  previewAction,
}

func init() {
	previewCmd.Flags().BoolVar(&previewHTML, "html", false, "render the note as HTML")
	rootCmd.AddCommand(previewCmd)
}

func previewAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := stderrLogger()
	if err != nil {
		return err
	}

	src, err := mastodon.New(cfg.Source.URL, cfg.Source.Token, cfg.Relay.RequestTimeout.Duration)
	if err != nil {
		return fmt.Errorf("mastodon client: %w", err)
	}

	ctx := cmd.Context()
	st, err := src.GetStatus(ctx, args[0])
	if err != nil {
		return err
	}

	rc := relay.NewResolver(src, logger).Resolve(ctx, st)
	note := relay.Build(rc, cfg.Relay.Tags)

	printPreviewHeader(os.Stdout, st, rc, cfg.Source.TriggerTag)

	if previewHTML {
		rendered, err := renderHTML(note)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, rendered)
		return nil
	}
	fmt.Fprintln(os.Stdout, note)
	return nil
}

func printPreviewHeader(w io.Writer, st *mastodon.Status, rc relay.ResolvedContent, trigger string) {
	fmt.Fprintf(w, "status:     %s\n", st.ID)
	fmt.Fprintf(w, "resolution: %s (content from %s)\n", rc.Resolution, rc.StatusID)
	fmt.Fprintf(w, "marker:     %s\n", relay.MarkerFor(st))
	if !st.HasTag(trigger) {
		fmt.Fprintf(w, "note:       not tagged #%s, run would skip it\n", trigger)
	}
	fmt.Fprintln(w, "---")
}

// renderHTML converts the assembled markdown note to HTML. The author header
// is raw HTML, so unsafe rendering stays on.
func renderHTML(note string) (string, error) {
	md := goldmark.New(goldmark.WithRendererOptions(html.WithUnsafe()))
	var buf bytes.Buffer
	if err := md.Convert([]byte(note), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
