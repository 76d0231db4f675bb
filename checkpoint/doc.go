// Package checkpoint contains CheckpointStore implementations and the
// per-thread lock that serializes turns on the same conversation.
//
//   - InMemoryStore: process local map, cloned on every read and write
//   - checkpoint/sqlite: durable store on modernc.org/sqlite
//
// The store interface lives in core so the runner never depends on a
// concrete backend.
package checkpoint
