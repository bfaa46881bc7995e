package requestlog

// Logger is the minimal interface for appending exchange entries.
type Logger interface {
	Log(entry *Entry)
}

// Store defines the interface for exchange log storage.
// Store embeds Logger, so any Store implementation can be used where Logger is expected.
type Store interface {
	Logger

	// Get retrieves a log entry by ID.
	Get(id string) *Entry

	// List returns log entries in sequence order, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all log entries. Sequence numbers keep increasing.
	Clear()

	// Count returns the number of log entries.
	Count() int
}

// Filter defines criteria for filtering exchange entries.
type Filter struct {
	// Method filters by HTTP method.
	Method string

	// Path filters by path prefix.
	Path string

	// MappingID filters by matched mapping ID.
	MappingID string

	// StatusCode filters by response status code.
	StatusCode int

	// Proxied filters by whether the upstream was contacted.
	Proxied *bool

	// HasError filters by error presence.
	HasError *bool

	// AfterSeq keeps only entries with a larger sequence number.
	AfterSeq int64

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new log entries.
type Subscriber chan *Entry

// SubscribableStore extends Store with subscription support.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber to receive new log entries.
	// Returns a channel that will receive entries and an unsubscribe function.
	Subscribe() (Subscriber, func())
}
