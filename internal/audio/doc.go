// ABOUTME: Package audio resolves voice task ids to playable clips
// ABOUTME: Holds the status client, the long-poll state machine and player backends

// Package audio polls the backend's voice synthesis status endpoint for a
// task id produced alongside a final answer and plays the resulting clip.
//
// A Poller keeps at most one poll live. Each poll ticks at a fixed interval
// and ends in exactly one of: done (clip handed to the Player), failed,
// timed out after MaxAttempts, canceled (superseded or context done) or
// errored (transport or decode failure). Polling never blocks the chat
// session; outcomes are reported through Config.OnOutcome.
package audio
