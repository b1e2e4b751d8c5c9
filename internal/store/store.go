// Package store keeps a local sqlite journal of relay attempts. The journal
// is an audit log only: the relay never reads it to decide what to send.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded for a delivery attempt.
const (
	OutcomeDelivered    = "delivered"
	OutcomeMarkerFailed = "marker_failed"
	OutcomeSendFailed   = "send_failed"
	OutcomeRateLimited  = "rate_limited"
)

type Store struct {
	db *sql.DB
}

type Delivery struct {
	ID              int64
	StatusID        string
	ContentStatusID string
	Resolution      string
	Author          string
	SourceURL       string
	MemoName        string
	Marker          string
	Outcome         string
	Error           string
	CreatedAt       time.Time
}

type DeliveryInput struct {
	StatusID        string
	ContentStatusID string
	Resolution      string
	Author          string
	SourceURL       string
	MemoName        string
	Marker          string
	Outcome         string
	Error           string
	CreatedAt       time.Time
}

// Summary aggregates journal rows by outcome.
type Summary struct {
	Total        int
	Delivered    int
	MarkerFailed int
	SendFailed   int
	RateLimited  int
	LastDelivery time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RecordDelivery(ctx context.Context, in DeliveryInput) (Delivery, error) {
	if s == nil || s.db == nil {
		return Delivery{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.StatusID) == "" {
		return Delivery{}, errors.New("status_id is required")
	}
	switch in.Outcome {
	case OutcomeDelivered, OutcomeMarkerFailed, OutcomeSendFailed, OutcomeRateLimited:
	default:
		return Delivery{}, fmt.Errorf("unknown outcome %q", in.Outcome)
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (
			status_id, content_status_id, resolution, author, source_url, memo_name, marker, outcome, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.StatusID,
		nullString(in.ContentStatusID),
		in.Resolution,
		in.Author,
		nullString(in.SourceURL),
		nullString(in.MemoName),
		nullString(in.Marker),
		in.Outcome,
		nullString(in.Error),
		formatTime(in.CreatedAt),
	)
	if err != nil {
		return Delivery{}, fmt.Errorf("insert delivery: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Delivery{}, fmt.Errorf("delivery id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status_id, content_status_id, resolution, author, source_url, memo_name, marker, outcome, error, created_at
		FROM deliveries WHERE id = ?
	`, id)
	return scanDelivery(row)
}

// ListDeliveries returns journal rows since the given time, newest first.
// An empty outcome matches every row.
func (s *Store) ListDeliveries(ctx context.Context, since time.Time, outcome string) ([]Delivery, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT id, status_id, content_status_id, resolution, author, source_url, memo_name, marker, outcome, error, created_at
		FROM deliveries
		WHERE created_at >= ?`
	args := []any{formatTime(since)}
	if outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deliveries []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

// Summary counts journal rows since the given time, by outcome.
func (s *Store) Summary(ctx context.Context, since time.Time) (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		sum          Summary
		lastDelivery sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'delivered' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'marker_failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'send_failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'rate_limited' THEN 1 ELSE 0 END), 0),
			MAX(CASE WHEN outcome IN ('delivered', 'marker_failed') THEN created_at END)
		FROM deliveries
		WHERE created_at >= ?
	`, formatTime(since)).Scan(&sum.Total, &sum.Delivered, &sum.MarkerFailed, &sum.SendFailed, &sum.RateLimited, &lastDelivery)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize deliveries: %w", err)
	}

	if lastDelivery.Valid {
		sum.LastDelivery, err = parseTime(lastDelivery.String)
		if err != nil {
			return Summary{}, fmt.Errorf("parse last delivery: %w", err)
		}
	}
	return sum, nil
}

// PruneOld deletes journal rows older than retainDays. Returns the number removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old deliveries: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(scanner rowScanner) (Delivery, error) {
	var d Delivery
	var contentID, sourceURL, memoName, marker, errorVal sql.NullString
	var createdAt string

	if err := scanner.Scan(
		&d.ID,
		&d.StatusID,
		&contentID,
		&d.Resolution,
		&d.Author,
		&sourceURL,
		&memoName,
		&marker,
		&d.Outcome,
		&errorVal,
		&createdAt,
	); err != nil {
		return Delivery{}, fmt.Errorf("scan delivery: %w", err)
	}

	d.ContentStatusID = contentID.String
	d.SourceURL = sourceURL.String
	d.MemoName = memoName.String
	d.Marker = marker.String
	d.Error = errorVal.String

	var err error
	d.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Delivery{}, fmt.Errorf("parse created_at: %w", err)
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Fixed-width fractional seconds keep lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
