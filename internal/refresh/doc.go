// Package refresh reconciles the store against the REST API.
//
// The refresher:
//   - Re-fetches the game listing and player profile on a fixed cadence
//   - Re-fetches every watched or refresh-flagged game individually,
//     with bounded concurrency
//   - Reloads the reservation listing so expired holds get resolved
//   - Backstops the push stream: state a dropped frame missed is picked
//     up here at the latest
//
// The first cycle runs as soon as the refresher starts, so starting it
// doubles as the initial load.
package refresh
