package domain

import (
	"sort"
	"strings"
)

// Blocklist is a set of application identifiers (usually absolute executable
// paths). Values are never modified in place: With returns a new set, so a
// Blocklist handed to a scan can be read without further locking.
type Blocklist struct {
	ids map[string]struct{}
}

// NewBlocklist builds a set from ids. Blank identifiers are dropped.
func NewBlocklist(ids ...string) Blocklist {
	b := Blocklist{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		b.ids[id] = struct{}{}
	}
	return b
}

// With returns a copy of b that also contains id.
func (b Blocklist) With(id string) Blocklist {
	next := Blocklist{ids: make(map[string]struct{}, len(b.ids)+1)}
	for k := range b.ids {
		next.ids[k] = struct{}{}
	}
	if strings.TrimSpace(id) != "" {
		next.ids[id] = struct{}{}
	}
	return next
}

// Contains reports whether id is blocked.
func (b Blocklist) Contains(id string) bool {
	_, ok := b.ids[id]
	return ok
}

// Len returns the number of identifiers.
func (b Blocklist) Len() int {
	return len(b.ids)
}

// Items returns the identifiers sorted.
func (b Blocklist) Items() []string {
	items := make([]string, 0, len(b.ids))
	for id := range b.ids {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}

// MatchArgs returns the smallest blocked identifier (in sorted order) that is
// equal to one element of args. Matching is per token; an identifier embedded
// inside a longer argument does not match.
func (b Blocklist) MatchArgs(args []string) (string, bool) {
	var (
		best  string
		found bool
	)
	for _, a := range args {
		if _, ok := b.ids[a]; !ok {
			continue
		}
		if !found || a < best {
			best, found = a, true
		}
	}
	return best, found
}

// Union returns a copy of b that also contains every identifier of other.
func (b Blocklist) Union(other Blocklist) Blocklist {
	next := Blocklist{ids: make(map[string]struct{}, len(b.ids)+len(other.ids))}
	for k := range b.ids {
		next.ids[k] = struct{}{}
	}
	for k := range other.ids {
		next.ids[k] = struct{}{}
	}
	return next
}
