// Package domain defines the core business types for the mail gateway.
//
// Types in this package are value objects plus the pure rules that belong to
// them (verification state, daily send counters, warmup ramp, reputation
// score, bounce classification). They are the shared language between
// handlers, services, and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Rule methods take the current time as a parameter instead of reading the clock
//   - Constants and enums belong here
package domain
