// Package requestlog provides the exchange log: an append-only record of every
// request the engine handled and the response it produced.
//
// It is distinct from operational logging (which uses log/slog). Entries are
// what a user inspects to see which requests came in, which mapping answered
// them, whether they were proxied and whether a mapping was recorded.
//
// # Core Types
//
// Entry is one request/response pair. Headers are kept as an ordered
// multi-map and bodies as raw bytes with a detected classification.
//
// # Store Interface
//
// Store defines the interface for exchange storage, supporting:
//   - Appending new entries with a monotonic sequence number
//   - Querying by ID or with filters, in sequence order
//   - Subscribing to new entries
//   - Clearing history
//
// # Usage
//
//	store := requestlog.NewMemoryStore()
//	entry := requestlog.NewEntry(req, resp)
//	entry.Route = "proxy"
//	store.Log(entry)
//	entries := store.List(nil)
package requestlog
