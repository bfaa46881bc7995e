package mapping

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/mockrelay/internal/id"
)

// Errors returned by the Store.
var (
	ErrNotFound           = errors.New("mapping not found")
	ErrControlPlaneLocked = errors.New("control-plane mapping cannot be replaced by a recorded mapping")
)

// ControlPlane is the narrow interface the engine consumes from the
// administrative layer.
type ControlPlane interface {
	ListMappings() []*Mapping
	RegisterMapping(m *Mapping) error
	DeleteMapping(id string) error
}

// Snapshot is an immutable view of the mapping set. Mappings are ordered by
// registration (Seq ascending).
type Snapshot struct {
	Version  uint64
	mappings []*Mapping
}

// EmptySnapshot returns a snapshot with no mappings.
func EmptySnapshot() *Snapshot {
	return &Snapshot{}
}

// NewSnapshot builds a standalone snapshot from ms, assigning Seq in slice
// order to mappings that have none. Used by tests and one-off evaluations.
func NewSnapshot(ms ...*Mapping) *Snapshot {
	out := make([]*Mapping, 0, len(ms))
	for i, m := range ms {
		c := m.Clone()
		if c.Seq == 0 {
			c.Seq = uint64(i + 1)
		}
		out = append(out, c)
	}
	return &Snapshot{mappings: out}
}

// Mappings returns the mappings in registration order. The slice must not be
// modified; the mappings themselves are shared and read-only.
func (s *Snapshot) Mappings() []*Mapping {
	if s == nil {
		return nil
	}
	return s.mappings
}

// Len returns the number of mappings.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.mappings)
}

// Get returns the mapping with the given ID or nil.
func (s *Snapshot) Get(mappingID string) *Mapping {
	for _, m := range s.Mappings() {
		if m.ID == mappingID {
			return m
		}
	}
	return nil
}

// Store is a copy-on-write mapping set. Reads are lock-free; writes are
// serialized and publish a new Snapshot.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
	nextSeq uint64
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.current.Store(EmptySnapshot())
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// ListMappings returns clones of all mappings in registration order.
func (s *Store) ListMappings() []*Mapping {
	snap := s.Snapshot()
	out := make([]*Mapping, 0, snap.Len())
	for _, m := range snap.Mappings() {
		out = append(out, m.Clone())
	}
	return out
}

// Get returns a clone of the mapping with the given ID.
func (s *Store) Get(mappingID string) (*Mapping, error) {
	m := s.Snapshot().Get(mappingID)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, mappingID)
	}
	return m.Clone(), nil
}

// Count returns the number of mappings.
func (s *Store) Count() int {
	return s.Snapshot().Len()
}

// RegisterMapping adds or replaces a mapping. The mapping is cloned; an
// empty ID is filled with a UUID and written back to m. Replacing a
// control-plane mapping with a non-control-plane one fails with
// ErrControlPlaneLocked.
func (s *Store) RegisterMapping(m *Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if m.ID == "" {
		m.ID = id.UUID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.Origin == "" {
		m.Origin = OriginStatic
	}

	old := s.current.Load()
	next := make([]*Mapping, 0, old.Len()+1)
	for _, existing := range old.Mappings() {
		if existing.ID == m.ID {
			if existing.ControlPlane && !m.ControlPlane {
				return fmt.Errorf("%w: %s", ErrControlPlaneLocked, m.ID)
			}
			continue
		}
		next = append(next, existing)
	}

	s.nextSeq++
	c := m.Clone()
	c.Seq = s.nextSeq
	next = append(next, c)

	s.current.Store(&Snapshot{Version: old.Version + 1, mappings: next})
	return nil
}

// DeleteMapping removes the mapping with the given ID.
func (s *Store) DeleteMapping(mappingID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	next := make([]*Mapping, 0, old.Len())
	found := false
	for _, existing := range old.Mappings() {
		if existing.ID == mappingID {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, mappingID)
	}

	s.current.Store(&Snapshot{Version: old.Version + 1, mappings: next})
	return nil
}

// DeleteByOrigin removes every non-control-plane mapping with the given
// origin and returns how many were removed.
func (s *Store) DeleteByOrigin(origin Origin) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	old := s.current.Load()
	next := make([]*Mapping, 0, old.Len())
	for _, existing := range old.Mappings() {
		if existing.Origin == origin && !existing.ControlPlane {
			continue
		}
		next = append(next, existing)
	}
	removed := old.Len() - len(next)
	if removed > 0 {
		s.current.Store(&Snapshot{Version: old.Version + 1, mappings: next})
	}
	return removed
}

// SortedByPriority returns the mappings ordered by priority (descending)
// then registration order (ascending), the order the admin listing uses.
func SortedByPriority(ms []*Mapping) []*Mapping {
	out := append([]*Mapping(nil), ms...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

var _ ControlPlane = (*Store)(nil)
