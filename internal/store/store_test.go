package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "relay.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = st.Close()
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordDelivery(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d, err := st.RecordDelivery(ctx, DeliveryInput{
		StatusID:        "100",
		ContentStatusID: "200",
		Resolution:      "reblog",
		Author:          "alice",
		SourceURL:       "https://social.test/@alice/200",
		MemoName:        "memos/7",
		Marker:          "unreblog",
		Outcome:         OutcomeDelivered,
		CreatedAt:       at,
	})
	if err != nil {
		t.Fatalf("record delivery: %v", err)
	}

	if d.ID == 0 {
		t.Error("expected non-zero id")
	}
	if d.StatusID != "100" || d.ContentStatusID != "200" || d.Resolution != "reblog" {
		t.Errorf("delivery = %+v", d)
	}
	if d.MemoName != "memos/7" || d.Marker != "unreblog" || d.Outcome != OutcomeDelivered {
		t.Errorf("delivery = %+v", d)
	}
	if d.Error != "" {
		t.Errorf("error = %q, want empty", d.Error)
	}
	if !d.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", d.CreatedAt, at)
	}
}

func TestRecordDelivery_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if _, err := st.RecordDelivery(ctx, DeliveryInput{Outcome: OutcomeDelivered}); err == nil {
		t.Error("expected error for missing status_id")
	}
	if _, err := st.RecordDelivery(ctx, DeliveryInput{StatusID: "1", Outcome: "bogus"}); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestListDeliveries(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inputs := []DeliveryInput{
		{StatusID: "1", Resolution: "direct", Author: "a", Outcome: OutcomeSendFailed, Error: "HTTP 500", CreatedAt: base},
		{StatusID: "1", Resolution: "direct", Author: "a", Marker: "delete", Outcome: OutcomeDelivered, CreatedAt: base.Add(90 * time.Second)},
		{StatusID: "2", Resolution: "link", Author: "b", Outcome: OutcomeRateLimited, CreatedAt: base.Add(150 * time.Second)},
		{StatusID: "0", Resolution: "direct", Author: "c", Outcome: OutcomeSendFailed, CreatedAt: base.Add(-48 * time.Hour)},
	}
	for _, in := range inputs {
		if _, err := st.RecordDelivery(ctx, in); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := st.ListDeliveries(ctx, base.Add(-time.Hour), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d deliveries, want 3", len(all))
	}
	if all[0].StatusID != "2" || all[2].Outcome != OutcomeSendFailed {
		t.Errorf("order = %s/%s/%s, want newest first", all[0].StatusID, all[1].StatusID, all[2].StatusID)
	}
	if all[2].Error != "HTTP 500" {
		t.Errorf("error = %q", all[2].Error)
	}

	failed, err := st.ListDeliveries(ctx, time.Time{}, OutcomeSendFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 2 {
		t.Errorf("got %d send failures, want 2", len(failed))
	}
}

func TestSummary(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{OutcomeDelivered, OutcomeMarkerFailed, OutcomeSendFailed, OutcomeSendFailed, OutcomeRateLimited} {
		_, err := st.RecordDelivery(ctx, DeliveryInput{
			StatusID:   "s",
			Resolution: "direct",
			Author:     "a",
			Outcome:    outcome,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	sum, err := st.Summary(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 5 || sum.Delivered != 1 || sum.MarkerFailed != 1 || sum.SendFailed != 2 || sum.RateLimited != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if want := base.Add(time.Minute); !sum.LastDelivery.Equal(want) {
		t.Errorf("last delivery = %v, want %v", sum.LastDelivery, want)
	}
}

func TestSummary_Empty(t *testing.T) {
	st, _ := openTestStore(t)

	sum, err := st.Summary(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 0 || !sum.LastDelivery.IsZero() {
		t.Errorf("summary = %+v, want zero", sum)
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, at := range []time.Time{now.AddDate(0, 0, -40), now.AddDate(0, 0, -10), now} {
		_, err := st.RecordDelivery(ctx, DeliveryInput{
			StatusID: "s", Resolution: "direct", Author: "a", Outcome: OutcomeDelivered, CreatedAt: at,
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	n, err := st.PruneOld(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	n, err = st.PruneOld(ctx, 0)
	if err != nil {
		t.Fatalf("prune disabled: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d with retain 0, want 0", n)
	}
}
