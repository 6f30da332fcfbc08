package domain

import (
	"strings"
	"unicode"
)

// NormalizePrincipal trims whitespace and lowercases s.
func NormalizePrincipal(s string) Principal {
	return Principal(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeTemplateName prepares a template name for storage and
// uniqueness checks:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses every whitespace run into one space
//
// Hyphens and punctuation are preserved.
func NormalizeTemplateName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	prevSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			r = ' '
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
