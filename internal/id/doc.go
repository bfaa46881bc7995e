// Package id provides unique identifier generation utilities.
//
// This is the canonical source for ID generation across the mockrelay codebase:
//
//   - UUID: random UUID v4, used for mapping and exchange identities
//   - Short: 16-character hex IDs, used where brevity matters (file names)
//
// UUIDs come from github.com/google/uuid; Short uses crypto/rand.
package id
