// Package protocol defines the frames the agent backend sends over the
// session WebSocket.
//
// Every server message is a JSON envelope discriminated by "type":
//
//	{"type": "progress",       "payload": {"agent": "...", "status": "...", "detail": "..."}}
//	{"type": "final_response", "payload": {"answer": "...", "image": {...}, "voice_task_id": "..."}}
//	{"type": "error",          "payload": {"detail": "..."}}
//
// The client sends the raw utterance text, unframed.
//
// Decode returns ErrUnknownType for envelopes outside this vocabulary so
// callers can drop them without treating them as faults.
package protocol
