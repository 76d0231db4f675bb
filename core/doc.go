// Package core provides the foundational domain types, interfaces and execution
// contexts used by recallmesh. It defines the core abstractions for:
//
//   - Content (role tagged, ordered parts: text, function calls, function responses)
//   - ConversationState (the persisted message log plus transient recall memories)
//   - Checkpoints (conversation state keyed by owner and thread)
//   - MemoryStore (owner scoped, append-only semantic memory)
//   - RunContext / ToolContext (scoped execution and tool sandboxing)
//   - The error taxonomy shared by every layer
//
// Concrete persistence, orchestration and model access live in sibling
// packages; core only exposes small interfaces so backends can be swapped.
package core
