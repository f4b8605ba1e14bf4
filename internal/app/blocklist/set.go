// Package blocklist provides the set of blocked tracks and the sources it is loaded from.
package blocklist

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/audiowarden/internal/domain/track"
)

const maxLineSize = 1024 * 1024

// Set is a set of blocked track IDs. The zero value is not usable; use NewSet.
type Set map[track.ID]struct{}

// NewSet creates a set holding the given IDs. Unknown IDs are dropped.
func NewSet(ids ...track.ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add adds an ID and reports whether it was new. Unknown IDs are never added.
func (s Set) Add(id track.ID) bool {
	if !id.IsKnown() {
		return false
	}
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Contains reports whether the set holds the ID.
func (s Set) Contains(id track.ID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of IDs in the set.
func (s Set) Len() int {
	return len(s)
}

// IDs returns the IDs in sorted order.
func (s Set) IDs() []track.ID {
	ids := make([]track.ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// clone returns a copy of the set.
func (s Set) clone() Set {
	c := make(Set, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// ParseWarning describes an entry that could not be resolved to a track.
type ParseWarning struct {
	Line int    // 1-based line number (0 for entries without a line)
	Text string // Offending text
}

// Parse reads blocklist entries, one per line.
// Blank lines and lines starting with '#' are ignored. Entries that do not
// resolve to a track are reported as warnings and skipped. Only read errors
// are returned as error.
func Parse(r io.Reader) (Set, []ParseWarning, error) {
	set := NewSet()
	var warnings []ParseWarning

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id := track.Resolve(text)
		if !id.IsKnown() {
			warnings = append(warnings, ParseWarning{Line: line, Text: text})
			continue
		}
		set.Add(id)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, errors.Wrapf(err, "failed to read blocklist at line %d", line+1)
	}

	return set, warnings, nil
}
