package relay

import (
	"strings"

	"github.com/ppiankov/mastodon2memos/internal/markup"
)

// DefaultTags are appended to every note, before the author's handle.
var DefaultTags = []string{"mastodon", "mastodon2memos"}

// Build normalizes the resolved body and assembles the note. Nil tags fall
// back to DefaultTags; an empty slice keeps only the author's handle.
func Build(rc ResolvedContent, tags []string) string {
	if tags == nil {
		tags = DefaultTags
	}
	return Assemble(rc, markup.Normalize(rc.Body), tags)
}

// Assemble builds the note text from resolved content and its markdown body.
// Sections are appended in a fixed order and empty ones are left out:
// header, body, poll, media, source link, hashtags.
//
// The handle is used as a hashtag verbatim, so handles with dots or dashes
// produce tags Memos only partly recognizes.
func Assemble(rc ResolvedContent, markdown string, tags []string) string {
	var b strings.Builder

	b.WriteString(rc.AuthorHeader)
	b.WriteString("\n\n")
	b.WriteString(markdown)

	if rc.PollSummary != "" {
		b.WriteString("\n\n📊 **Poll Options:**")
		b.WriteString(rc.PollSummary)
	}

	if len(rc.MediaURLs) > 0 {
		b.WriteString("\n\n🖼️ **Media:**\n")
		b.WriteString(rc.MediaBlock())
	}

	if rc.SourceURL != "" {
		b.WriteString("\n\n🔗 **Source:** ")
		b.WriteString(rc.SourceURL)
	}

	b.WriteString("\n\n")
	for _, tag := range tags {
		b.WriteString("#")
		b.WriteString(tag)
		b.WriteString(" ")
	}
	b.WriteString("#")
	b.WriteString(rc.AuthorHandle)

	return b.String()
}
