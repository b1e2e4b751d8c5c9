// Package relay turns tagged Mastodon posts into Memos notes: it resolves the
// content behind reblogs and post links, assembles the note and marks the
// source post as handled.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ppiankov/mastodon2memos/internal/mastodon"
)

const (
	unknownDisplayName = "Unknown"
	unknownHandle      = "unknown"
)

var statusURLRe = regexp.MustCompile(`https?://[^\s<"]+`)

// Resolution records which branch produced the resolved content.
type Resolution string

const (
	ResolvedReblog Resolution = "reblog"
	ResolvedLink   Resolution = "link"
	ResolvedDirect Resolution = "direct"
)

// Searcher looks up statuses by URL, fetching remote ones when needed.
type Searcher interface {
	SearchStatuses(ctx context.Context, query string) ([]mastodon.Status, error)
}

// ResolvedContent is the de-referenced post a note is built from.
type ResolvedContent struct {
	StatusID     string // status the content was taken from
	Resolution   Resolution
	Body         string // HTML as returned by the API
	SourceURL    string
	MediaURLs    []string
	PollSummary  string
	AuthorHeader string
	AuthorHandle string
}

// MediaBlock renders one markdown image line per media URL.
func (rc ResolvedContent) MediaBlock() string {
	lines := make([]string, 0, len(rc.MediaURLs))
	for _, u := range rc.MediaURLs {
		lines = append(lines, "![]("+u+")")
	}
	return strings.Join(lines, "\n")
}

// Resolver picks the content to relay for a timeline status.
type Resolver struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewResolver creates a resolver. A nil searcher disables link resolution.
func NewResolver(searcher Searcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{searcher: searcher, logger: logger}
}

// Resolve returns the content of the boosted post for a reblog, the linked
// post when the body is a link to a status, or the post itself.
func (r *Resolver) Resolve(ctx context.Context, st *mastodon.Status) ResolvedContent {
	if st.Reblog != nil {
		return fromPost(st.Reblog, ResolvedReblog, true)
	}

	if link := postLink(st.Content); link != "" && r.searcher != nil {
		found, err := r.searcher.SearchStatuses(ctx, link)
		switch {
		case err != nil:
			r.logger.Warn("resolve linked post failed, using original", "status", st.ID, "url", link, "err", err)
		case len(found) == 0:
			r.logger.Info("linked post not found, using original", "status", st.ID, "url", link)
		default:
			r.logger.Debug("resolved linked post", "status", st.ID, "url", link, "target", found[0].ID)
			// Polls are not carried over from a linked post.
			return fromPost(&found[0].Post, ResolvedLink, false)
		}
	}

	return fromPost(&st.Post, ResolvedDirect, true)
}

// postLink returns the first URL in body when it looks like a link to a
// status (an /@account path with a numeric ID), or "".
func postLink(body string) string {
	u := statusURLRe.FindString(body)
	if u == "" {
		return ""
	}
	if strings.Contains(u, "/@") && strings.ContainsAny(u, "0123456789") {
		return u
	}
	return ""
}

func fromPost(p *mastodon.Post, res Resolution, withPoll bool) ResolvedContent {
	name := p.Account.DisplayName
	if name == "" {
		name = unknownDisplayName
	}
	handle := p.Account.Username
	if handle == "" {
		handle = unknownHandle
	}

	var media []string
	for _, m := range p.MediaAttachments {
		if m.URL != "" {
			media = append(media, m.URL)
		}
	}

	rc := ResolvedContent{
		StatusID:     p.ID,
		Resolution:   res,
		Body:         p.Content,
		SourceURL:    p.URL,
		MediaURLs:    media,
		AuthorHeader: AuthorHeader(p.Account.Avatar, name, handle),
		AuthorHandle: handle,
	}
	if withPoll && p.Poll != nil {
		rc.PollSummary = PollSummary(p.Poll)
	}
	return rc
}

// AuthorHeader renders a 32px avatar followed by the bold name and @handle.
func AuthorHeader(avatar, name, handle string) string {
	return fmt.Sprintf(
		`<img src="%s" width="32" height="32" style="border-radius:4px; vertical-align:middle; display:inline-block; margin:0 8px 0 0;"><span style="vertical-align:middle;">**%s** (@%s)</span>`,
		avatar, name, handle,
	)
}

// PollSummary renders each option as a bullet on its own line. Every line
// starts with a newline so it can follow a heading directly.
func PollSummary(p *mastodon.Poll) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for _, opt := range p.Options {
		fmt.Fprintf(&b, "\n* %s (%d votes)", opt.Title, opt.Votes())
	}
	return b.String()
}
