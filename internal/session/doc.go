// ABOUTME: Package session drives one conversation against the agent backend
// ABOUTME: Gates input on the in-flight request and dispatches frames to the sinks

// Package session is the orchestration core of the chat client.
//
// A Controller owns the only cross-cutting state: whether a request is in
// flight. Everything that can change that state (transport open/close,
// inbound frames, user submits, timer ticks, the optional request deadline
// and voice poll results) arrives as an event and is handled on the Run
// goroutine, one at a time and in arrival order.
//
// Request lifecycle:
//
//	submit -> gate check -> thinking starts -> text sent
//	       -> progress* -> exactly one terminal frame
//	       -> thinking stops, reply shown, gate clears
//	       -> voice poll starts if a task id was returned
//
// A transport close clears the gate with an interruption message; the
// transport reconnects on its own and the reconnecting indicator clears on
// the next open. Voice polling runs beside the request cycle and never
// holds the gate.
package session
