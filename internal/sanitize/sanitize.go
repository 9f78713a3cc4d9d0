// Package sanitize reduces user supplied text to plain text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds how many layers of entity encoding Text unwraps.
const maxPasses = 8

// Text strips every HTML element from s and trims surrounding whitespace.
// Entities escaped by the policy are decoded again so the result is plain
// text. Decoding can surface markup that was entity encoded in the input, so
// the strip and decode steps repeat until the text stops changing. Input that
// is still changing after maxPasses is returned in its escaped form.
func Text(s string) string {
	out := s
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(strict.Sanitize(out))
}

// Texts applies Text to each element and drops the ones left empty.
func Texts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := Text(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
