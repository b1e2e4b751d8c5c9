package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ppiankov/mastodon2memos/internal/mastodon"
	"github.com/ppiankov/mastodon2memos/internal/memos"
	"github.com/ppiankov/mastodon2memos/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	statuses  []mastodon.Status
	fetchErr  error
	search    map[string][]mastodon.Status
	searchErr error

	searches  []string
	unreblogs []string
	deletes   []string
	markerErr error
}

func (f *fakeSource) AccountStatuses(_ context.Context, _ string, limit int) ([]mastodon.Status, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := append([]mastodon.Status(nil), f.statuses...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) SearchStatuses(_ context.Context, query string) ([]mastodon.Status, error) {
	f.searches = append(f.searches, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search[query], nil
}

func (f *fakeSource) Unreblog(_ context.Context, id string) error {
	f.unreblogs = append(f.unreblogs, id)
	if f.markerErr != nil {
		return f.markerErr
	}
	f.remove(id)
	return nil
}

func (f *fakeSource) DeleteStatus(_ context.Context, id string) error {
	f.deletes = append(f.deletes, id)
	if f.markerErr != nil {
		return f.markerErr
	}
	f.remove(id)
	return nil
}

// remove drops a handled status so the next fetch no longer returns it.
func (f *fakeSource) remove(id string) {
	kept := f.statuses[:0]
	for _, st := range f.statuses {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	f.statuses = kept
}

type fakeSink struct {
	status   int // HTTP status to fail with; 0 succeeds
	err      error
	payloads []string
	vis      []memos.Visibility
}

func (f *fakeSink) CreateMemo(_ context.Context, content string, visibility memos.Visibility) (*memos.Memo, error) {
	f.payloads = append(f.payloads, content)
	f.vis = append(f.vis, visibility)
	if f.err != nil {
		return nil, f.err
	}
	if f.status != 0 {
		return nil, &memos.HTTPError{StatusCode: f.status, Method: http.MethodPost, URL: "https://memos.test/api/v1/memos"}
	}
	return &memos.Memo{Name: "memos/1", Content: content, Visibility: visibility}, nil
}

type fakeJournal struct {
	entries []store.DeliveryInput
	err     error
}

func (f *fakeJournal) RecordDelivery(_ context.Context, in store.DeliveryInput) (store.Delivery, error) {
	if f.err != nil {
		return store.Delivery{}, f.err
	}
	f.entries = append(f.entries, in)
	return store.Delivery{StatusID: in.StatusID, Outcome: in.Outcome}, nil
}

var errNetwork = errors.New("connection refused")

func directPost(id, content string, tags ...string) mastodon.Status {
	st := mastodon.Status{Post: mastodon.Post{
		ID:      id,
		Content: content,
		URL:     "https://social.test/@me/" + id,
		Account: mastodon.Account{Username: "me", DisplayName: "Me", Avatar: "https://social.test/me.png"},
	}}
	for _, t := range tags {
		st.Tags = append(st.Tags, mastodon.Tag{Name: t})
	}
	return st
}

func reblogOf(wrapperID string, target mastodon.Post) mastodon.Status {
	return mastodon.Status{
		Post:   mastodon.Post{ID: wrapperID, Account: mastodon.Account{Username: "me"}},
		Reblog: &target,
	}
}
