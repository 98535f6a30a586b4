// Package transport implements the WebSocket link to the Arcade Live
// realtime gateway.
//
// The transport:
//   - Dials one multiplexed connection per engine session
//   - Carries the client identity in the URL query string
//   - Responds to server pings and watches for stale links
//   - Surfaces raw frames and link errors on channels
//
// Reconnection policy lives above this package; a Conn is single-use
// and is thrown away once its link errors or closes.
package transport
