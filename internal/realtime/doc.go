// Package realtime implements the connection engine behind the
// tablesync client.
//
// The engine:
//   - Maintains one multiplexed WebSocket connection to the gateway
//   - Reconnects with exponential backoff (1s, 2s, 4s, 8s, 16s, 30s cap)
//   - Decodes inbound frames, merges them into the store, then fans
//     them out to subscribers
//   - Requests an authoritative snapshot after every reconnect
//
// State machine:
//
//	disconnected -> connecting -> connected
//	     ^            ^   |          |
//	     |            |   v          v
//	     +-------- reconnecting <----+
//	                    |
//	                    v
//	                  failed
//
// A normal closure (code 1000) lands in disconnected and is never
// retried; every other loss of the link enters reconnecting. When the
// backoff timer fires the engine moves back to connecting for the
// duration of the dial. Exhausting the retry budget lands in failed,
// which only an explicit Connect leaves.
//
// Every dial, retry timer and read loop is stamped with the epoch it
// was started under. User operations and teardowns bump the epoch, so
// anything that outlives its epoch discards itself instead of mutating
// state it no longer owns.
package realtime
