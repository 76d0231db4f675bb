// Package runner implements ProcessTurn, the single entry point that turns
// one inbound user message into one assistant reply.
//
// # Responsibilities
//   - Serializes turns per (owner, thread) with a keyed lock held across
//     load, graph execution and save
//   - Loads the checkpoint, works on a private copy and persists it only
//     when the turn completes without a fatal error or cancellation
//   - Invokes an optional Fallback (the intent router) when the graph ends
//     without assistant content
//   - Tracks active runs for cancellation and graceful shutdown
package runner
