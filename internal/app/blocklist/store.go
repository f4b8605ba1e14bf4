package blocklist

import (
	"context"
	"sort"
	"sync"

	"github.com/osa030/audiowarden/internal/domain/track"
)

// Store holds one set per source. A track is blocked if any source holds it.
// Sets are replaced wholesale so readers always see a complete set.
type Store struct {
	mu      sync.RWMutex
	sets    map[string]Set
	primary string // Source that receives runtime insertions
}

// NewStore creates an empty store whose runtime insertions go to the named source.
func NewStore(primary string) *Store {
	return &Store{
		sets:    map[string]Set{primary: NewSet()},
		primary: primary,
	}
}

// Reload loads the source and atomically replaces its set.
// On error the previous set is kept.
func (s *Store) Reload(ctx context.Context, src Source) ([]ParseWarning, error) {
	set, warnings, err := src.Load(ctx)
	if err != nil {
		return warnings, err
	}
	s.Replace(src.Name(), set)
	return warnings, nil
}

// Replace atomically replaces the set of the named source.
func (s *Store) Replace(name string, set Set) {
	if set == nil {
		set = NewSet()
	}
	s.mu.Lock()
	s.sets[name] = set
	s.mu.Unlock()
}

// Contains reports whether any source blocks the ID.
func (s *Store) Contains(id track.ID) bool {
	if !id.IsKnown() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.sets {
		if set.Contains(id) {
			return true
		}
	}
	return false
}

// Insert adds the ID to the primary source and reports whether it was new there.
// The set is copied on write so that sets handed out earlier stay unchanged.
func (s *Store) Insert(id track.ID) bool {
	if !id.IsKnown() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.sets[s.primary]
	if cur.Contains(id) {
		return false
	}
	next := cur.clone()
	next.Add(id)
	s.sets[s.primary] = next
	return true
}

// Len returns the number of distinct blocked IDs across all sources.
func (s *Store) Len() int {
	return len(s.Snapshot())
}

// SourceLen returns the number of IDs held by the named source.
func (s *Store) SourceLen(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets[name].Len()
}

// Sources returns the names of all sources in sorted order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns all distinct blocked IDs in sorted order.
func (s *Store) Snapshot() []track.ID {
	s.mu.RLock()
	union := NewSet()
	for _, set := range s.sets {
		for id := range set {
			union[id] = struct{}{}
		}
	}
	s.mu.RUnlock()
	return union.IDs()
}
