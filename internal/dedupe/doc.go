// Package dedupe remembers keys for a bounded time so an action keyed by
// them runs at most once.
package dedupe
