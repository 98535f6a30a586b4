// Package protocol defines the WebSocket wire protocol spoken by the
// Arcade Live realtime gateway.
//
// Inbound kinds: game_state_update, reservation_created,
// reservation_released, sync_response, error
//
// Outbound kinds: sync_request
//
// Every inbound frame carries a type tag and an RFC 3339 server
// timestamp. Frames decode into one value of the closed Inbound set;
// unknown type tags are rejected, never silently dropped into a
// generic map.
package protocol
