// Package privacy scrubs access tokens and user-configured patterns from text
// the relay persists or logs.
package privacy

import (
	"fmt"
	"regexp"
)

const redactedPlaceholder = "[REDACTED]"

// Secrets shorter than this are not redacted literally; they would match
// ordinary words.
const minSecretLen = 8

// Redactor replaces matches with a placeholder. A nil *Redactor is valid and
// leaves text unchanged.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles patterns and adds every secret as a literal match.
func New(patterns []string, secrets ...string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns)+len(secrets))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	for _, s := range secrets {
		if len(s) < minSecretLen {
			continue
		}
		compiled = append(compiled, regexp.MustCompile(regexp.QuoteMeta(s)))
	}
	return &Redactor{patterns: compiled}, nil
}

// Apply replaces all matches in text with [REDACTED].
func (r *Redactor) Apply(text string) string {
	if r == nil {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Error returns the redacted message of err, or "" for a nil error.
func (r *Redactor) Error(err error) string {
	if err == nil {
		return ""
	}
	return r.Apply(err.Error())
}
