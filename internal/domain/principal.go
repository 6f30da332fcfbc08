package domain

import "regexp"

// Principal is an opaque participant identifier (sender or recipient).
type Principal string

var principalRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

func (p Principal) String() string { return string(p) }

// Valid reports whether p is well-formed: lowercase alphanumerics and
// dashes, 1..64 chars, no leading or trailing dash.
func (p Principal) Valid() bool {
	return principalRe.MatchString(string(p))
}
