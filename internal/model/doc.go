// Package model defines shared data types used across the tablesync client.
//
// All types mirror the Arcade Live platform API objects.
//
// Conventions:
//   - Stakes: integer minor currency units (100 = $1.00)
//   - Timestamps: time.Time in UTC, RFC 3339 on the wire
//   - IDs: server-assigned opaque strings
package model
