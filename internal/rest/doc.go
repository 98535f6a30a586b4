// Package rest provides the Arcade Live platform REST client.
//
// Endpoints (relative to the configured base URL):
//   - GET /games         game listing
//   - GET /games/{id}    single game
//   - GET /profile       the authenticated player
//   - GET /reservations  the player's seat holds
//
// Requests carry the client identity in X-Client-Id and X-Init-Data
// headers. Server faults (5xx) and rate limits (429) are retried with
// jittered exponential backoff; everything else fails fast.
package rest
