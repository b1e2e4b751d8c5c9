package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/ppiankov/mastodon2memos/internal/store"
	"github.com/spf13/cobra"
)

var (
	historySince   string
	historyOutcome string
	historyFormat  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent delivery attempts from the journal",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "7d", "time window (e.g. 7d, 48h)")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "only show one outcome: delivered, marker_failed, send_failed, rate_limited")
	historyCmd.Flags().StringVar(&historyFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(historyCmd)
}

func historyAction(cmd *cobra.Command, _ []string) error {
	switch historyOutcome {
	case "", store.OutcomeDelivered, store.OutcomeMarkerFailed, store.OutcomeSendFailed, store.OutcomeRateLimited:
	default:
		return fmt.Errorf("unknown outcome %q", historyOutcome)
	}

	cfg, err := config.Parse(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := cfg.Storage.JournalPath()
	if path == "" {
		return fmt.Errorf("journal is disabled (storage.disabled)")
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	sinceDur, err := parseDuration(historySince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}
	sinceTime := time.Now().Add(-sinceDur)

	ctx := cmd.Context()

	sum, err := db.Summary(ctx, sinceTime)
	if err != nil {
		return fmt.Errorf("summarize journal: %w", err)
	}
	deliveries, err := db.ListDeliveries(ctx, sinceTime, historyOutcome)
	if err != nil {
		return fmt.Errorf("list deliveries: %w", err)
	}

	switch historyFormat {
	case "json":
		return printHistoryJSON(os.Stdout, sum, deliveries)
	case "terminal", "":
		printHistory(os.Stdout, sum, deliveries, sinceDur)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", historyFormat)
	}
}

type jsonHistoryOutput struct {
	Summary    jsonSummary    `json:"summary"`
	Deliveries []jsonDelivery `json:"deliveries"`
}

type jsonSummary struct {
	Total        int    `json:"total"`
	Delivered    int    `json:"delivered"`
	MarkerFailed int    `json:"marker_failed"`
	SendFailed   int    `json:"send_failed"`
	RateLimited  int    `json:"rate_limited"`
	LastDelivery string `json:"last_delivery,omitempty"`
}

type jsonDelivery struct {
	StatusID        string `json:"status_id"`
	ContentStatusID string `json:"content_status_id,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	Author          string `json:"author,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	MemoName        string `json:"memo_name,omitempty"`
	Marker          string `json:"marker,omitempty"`
	Outcome         string `json:"outcome"`
	Error           string `json:"error,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func printHistoryJSON(w io.Writer, sum store.Summary, deliveries []store.Delivery) error {
	out := jsonHistoryOutput{
		Summary: jsonSummary{
			Total:        sum.Total,
			Delivered:    sum.Delivered,
			MarkerFailed: sum.MarkerFailed,
			SendFailed:   sum.SendFailed,
			RateLimited:  sum.RateLimited,
		},
		Deliveries: make([]jsonDelivery, 0, len(deliveries)),
	}
	if !sum.LastDelivery.IsZero() {
		out.Summary.LastDelivery = sum.LastDelivery.UTC().Format(time.RFC3339)
	}

	for _, d := range deliveries {
		out.Deliveries = append(out.Deliveries, jsonDelivery{
			StatusID:        d.StatusID,
			ContentStatusID: d.ContentStatusID,
			Resolution:      d.Resolution,
			Author:          d.Author,
			SourceURL:       d.SourceURL,
			MemoName:        d.MemoName,
			Marker:          d.Marker,
			Outcome:         d.Outcome,
			Error:           d.Error,
			CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printHistory(w io.Writer, sum store.Summary, deliveries []store.Delivery, since time.Duration) {
	if sum.Total == 0 {
		fmt.Fprintln(w, "No deliveries recorded. Run 'mastodon2memos run' first.")
		return
	}

	fmt.Fprintf(w, "mastodon2memos history: %s, %d attempts\n\n", formatHistoryDuration(since), sum.Total)

	fmt.Fprintln(w, "--- Outcomes ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Delivered:      %5d  (%.1f%%)\n", sum.Delivered, pct(sum.Delivered, sum.Total))
	fmt.Fprintf(w, "  Marker failed:  %5d  (%.1f%%)\n", sum.MarkerFailed, pct(sum.MarkerFailed, sum.Total))
	fmt.Fprintf(w, "  Send failed:    %5d  (%.1f%%)\n", sum.SendFailed, pct(sum.SendFailed, sum.Total))
	fmt.Fprintf(w, "  Rate limited:   %5d  (%.1f%%)\n", sum.RateLimited, pct(sum.RateLimited, sum.Total))
	if !sum.LastDelivery.IsZero() {
		fmt.Fprintf(w, "  Last delivery:  %s\n", sum.LastDelivery.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w)

	if len(deliveries) == 0 {
		return
	}

	fmt.Fprintln(w, "--- Attempts ---")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s  %-13s  %-20s  %-8s  %-16s  %s\n", "Time", "Outcome", "Status", "Marker", "Author", "Detail")
	for _, d := range deliveries {
		detail := d.MemoName
		if d.Error != "" {
			detail = d.Error
		}
		fmt.Fprintf(w, "  %-16s  %-13s  %-20s  %-8s  %-16s  %s\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			d.Outcome,
			truncate(d.StatusID, 20),
			d.Marker,
			truncate(d.Author, 16),
			detail,
		)
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatHistoryDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%d days", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}
