package slirc

import (
	"strconv"
	"strings"
)

// nameFallback is used when sanitising leaves nothing usable.
const nameFallback = "_"

// sanitizeName replaces the bytes that are illegal in IRC nicks and channel
// names with underscores.
func sanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '#', ' ', ',', '<', '>', '!', 0, '\r', '\n', ':':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return nameFallback
	}
	return s
}

// arbitrateName picks an IRC-legal name for a proposed remote name that is
// free according to taken (a fold-keyed lookup) and never collides with the
// reserved gateway nick. The result is deterministic for a given map state:
// the sanitised proposal itself, or the first free decimal-suffixed variant.
func arbitrateName(proposed string, taken func(folded string) bool) string {
	base := sanitizeName(proposed)
	if folded := ircFold(base); folded != ircFold(serviceNick) && !taken(folded) {
		return base
	}
	for i := 1; ; i++ {
		name := base + strconv.Itoa(i)
		if folded := ircFold(name); folded != ircFold(serviceNick) && !taken(folded) {
			return name
		}
	}
}
