// Package markup turns Mastodon's HTML post bodies into the markdown dialect
// Memos renders.
package markup

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
	lineBreakRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphGapRe = regexp.MustCompile(`(?i)</p>\s*<p[^>]*>`)
)

// The converter escapes these for CommonMark, but Memos shows them literally
// and hashtags must stay clickable. Other escapes are left alone.
var unescaper = strings.NewReplacer(
	`\#`, `#`,
	`\[`, `[`,
	`\]`, `]`,
	`\*`, `*`,
	`\_`, `_`,
	`\>`, `>`,
	"\\`", "`",
)

// Normalizer converts HTML to markdown. The zero value is not usable; use New.
type Normalizer struct {
	convert func(string) (string, error)
}

// New creates a normalizer backed by html-to-markdown.
func New() *Normalizer {
	conv := md.NewConverter("", true, nil)
	return &Normalizer{convert: conv.ConvertString}
}

var defaultNormalizer = New()

// Normalize converts HTML with the default normalizer.
func Normalize(body string) string {
	return defaultNormalizer.Normalize(body)
}

// Normalize converts body to markdown and repairs over-escaping. It never
// fails: if conversion errors, the plain text of the document is returned.
func (n *Normalizer) Normalize(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	out, err := n.convert(body)
	if err != nil {
		return PlainText(body)
	}
	return strings.TrimSpace(Unescape(out))
}

// Unescape removes the backslash from \# \[ \] \* \_ \> and \`.
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// PlainText extracts readable text from HTML, keeping line and paragraph breaks.
func PlainText(body string) string {
	text := paragraphGapRe.ReplaceAllString(body, "\n\n")
	text = lineBreakRe.ReplaceAllString(text, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		text = htmlTagRe.ReplaceAllString(text, "")
		return strings.TrimSpace(html.UnescapeString(text))
	}
	return strings.TrimSpace(doc.Text())
}
