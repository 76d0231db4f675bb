// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside recallmesh.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Expose each model step as a tagged Turn: an Answer or ToolRequests
//   - Facilitate lightweight scripting for tests (ScriptedModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the orchestration graph remains decoupled from vendor SDKs.
package model
