// Package reputation tracks the delivery health of sending IPs.
//
// Counters are incremented atomically in storage and the score is then
// recomputed from the aggregates. An IP with no record is treated as
// sendable with status "unknown".
package reputation
