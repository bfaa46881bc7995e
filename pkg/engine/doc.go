// Package engine composes routing, forwarding, relaying, recording and the
// exchange log into a single request handler.
//
// # Request flow
//
//	inbound request
//	      │
//	      ▼
//	 router.Resolve ──► respond: canned mapping response
//	      │
//	      ├──────────► proxy:   Forwarder ──► upstream
//	      │                        │
//	      │                        ├─ ok:      relay upstream response, then record
//	      │                        └─ failure: 500 diagnostic (Failure Adapter)
//	      │
//	      └──────────► none:    404 no_matching_mapping
//	      │
//	      ▼
//	 proxy.PrepareResponse (every response takes the relay path)
//	      │
//	      ▼
//	 exchange log (exactly one entry per request)
//
// Per request the order is forward, relay, record, log. Requests are
// independent; the mapping set is read through immutable snapshots.
//
// # Server
//
// Server runs the engine on the data port and, optionally, an admin
// handler on a second port.
package engine
