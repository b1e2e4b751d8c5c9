package mastodon

import "strings"

// Account is the author of a status.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// MediaAttachment is a single image, video or audio file attached to a post.
type MediaAttachment struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PollOption is one choice of a poll. VotesCount is null when results are hidden.
type PollOption struct {
	Title      string `json:"title"`
	VotesCount *int   `json:"votes_count"`
}

// Votes returns the vote count, or 0 when the instance hides it.
func (o PollOption) Votes() int {
	if o.VotesCount == nil {
		return 0
	}
	return *o.VotesCount
}

// Poll is attached to a post when the author ran a poll.
type Poll struct {
	ID      string       `json:"id"`
	Options []PollOption `json:"options"`
}

// Tag is a hashtag used in a post.
type Tag struct {
	Name string `json:"name"`
}

// Post holds the content fields of a status. It deliberately has no reblog
// field, so a reblog target can never carry another reblog.
type Post struct {
	ID               string            `json:"id"`
	Content          string            `json:"content"`
	URL              string            `json:"url"`
	Account          Account           `json:"account"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	Poll             *Poll             `json:"poll"`
	Tags             []Tag             `json:"tags"`
}

// HasTag reports whether the post uses the hashtag, ignoring case.
func (p *Post) HasTag(name string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// Status is a timeline entry: either a direct post or a reblog wrapper whose
// own fields are empty and whose Reblog points at the boosted post.
type Status struct {
	Post
	Reblog *Post `json:"reblog"`
}

// IsReblog reports whether the status is a reblog wrapper.
func (s *Status) IsReblog() bool {
	return s.Reblog != nil
}

// HasTag checks the wrapper's tags and, for a reblog, the boosted post's tags.
// Mastodon returns an empty tag list on reblog wrappers.
func (s *Status) HasTag(name string) bool {
	if s.Post.HasTag(name) {
		return true
	}
	return s.Reblog != nil && s.Reblog.HasTag(name)
}

type searchResults struct {
	Statuses []Status `json:"statuses"`
}
