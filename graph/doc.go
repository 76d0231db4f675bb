// Package graph implements the per-turn orchestration state machine:
//
//	LOAD_MEMORIES -> AGENT -> (TOOLS -> AGENT)* -> TERMINAL
//
// LOAD_MEMORIES trims the conversation to the recall window and searches the
// owner's memories. AGENT renders the memory policy instruction plus the
// recall block and asks the model for the next Turn. A ToolRequests turn
// moves to TOOLS, which executes every call (concurrently, results appended
// in request order) and loops back to AGENT; an Answer ends the turn.
//
// A round limit bounds the AGENT/TOOLS loop. Non-fatal failures (model or
// search outages, unknown tools, bad arguments) are folded into the
// conversation; core.IsFatal errors abort the run and leave the caller to
// discard the working state.
package graph
