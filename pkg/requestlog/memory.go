package requestlog

import (
	"strings"
	"sync"
	"time"

	"github.com/getmockd/mockrelay/internal/id"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory, append-only Store. It never evicts entries on
// its own; Clear is the only way to drop history.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	lastSeq int64

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

var _ SubscribableStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Log appends a copy of entry. Seq is always assigned by the store; ID and
// Timestamp are filled in when empty. The assigned values are written back to
// entry so the caller can refer to the logged record.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	s.lastSeq++
	entry.Seq = s.lastSeq
	if entry.ID == "" {
		entry.ID = id.UUID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	stored := entry.Clone()
	s.entries = append(s.entries, stored)
	s.mu.Unlock()

	// Notify subscribers (non-blocking)
	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- stored.Clone():
		default:
			// Drop if subscriber is slow
		}
	}
	s.subMu.RUnlock()
}

// Get retrieves a copy of the entry with the given ID, or nil.
func (s *MemoryStore) Get(entryID string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == entryID {
			return e.Clone()
		}
	}
	return nil
}

// List returns copies of the entries matching filter, oldest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	skipped := 0
	for _, e := range s.entries {
		if filter != nil {
			if !matchesFilter(e, filter) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			if filter.Limit > 0 && len(result) >= filter.Limit {
				break
			}
		}
		result = append(result, e.Clone())
	}
	return result
}

func matchesFilter(e *Entry, f *Filter) bool {
	if f.Method != "" && !strings.EqualFold(e.Request.Method, f.Method) {
		return false
	}
	if f.Path != "" && !strings.HasPrefix(e.Request.Path, f.Path) {
		return false
	}
	if f.MappingID != "" && e.MappingID != f.MappingID {
		return false
	}
	if f.StatusCode != 0 && e.Response.Status != f.StatusCode {
		return false
	}
	if f.Proxied != nil && *f.Proxied != e.Proxied {
		return false
	}
	if f.HasError != nil && *f.HasError != (e.Error != "") {
		return false
	}
	if f.AfterSeq > 0 && e.Seq <= f.AfterSeq {
		return false
	}
	return true
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers a subscriber to receive new log entries.
// Returns a channel that will receive entries and an unsubscribe function.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}

	return ch, unsubscribe
}
