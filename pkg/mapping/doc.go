// Package mapping defines stub mappings and the concurrency-safe store that
// holds them.
//
// A Mapping pairs a RequestMatcher with exactly one action: a canned
// ResponseTemplate or a ProxyAction that forwards to an upstream. Mappings are
// either loaded from configuration (control-plane, Origin static) or
// synthesized from proxied traffic (Origin recorded).
//
// # Store
//
// Store keeps an immutable Snapshot behind an atomic pointer. Readers call
// Snapshot() without locking and always observe a complete set of mappings;
// writers are serialized and publish a new Snapshot on every change. Mappings
// are cloned on the way in and must not be mutated once registered.
//
// # Serialization
//
// Mappings round-trip through JSON and YAML (gopkg.in/yaml.v3). Bodies are
// written as {text: ...} when they are valid UTF-8 and {base64: ...}
// otherwise, so binary payloads survive a file round-trip unchanged.
package mapping
