// Package memory contains concrete MemoryStore implementations. The store
// interface and SearchResult type reside in the core package; depend on
// core.MemoryStore in your code and select an implementation at wiring time:
//
//   - InMemoryStore: process local vectors, exact cosine scan per owner
//   - memory/chromem: chromem-go backed store with optional persistence
//
// Both stores embed text through an Embedder (see memory/embedder) and
// enforce owner isolation twice: the scan is restricted to the owner's
// records and every result is filtered by owner again before returning.
package memory
