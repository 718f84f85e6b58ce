// Package logingest tails the Postfix mail log and applies delivery outcomes
// to send logs.
//
// Each pass resumes at the persisted byte offset, reads complete lines only,
// and commits the new offset after the whole pass succeeded. Delivery lines
// are keyed by the SHA-256 of the raw line, so replaying a region of the log
// never applies an outcome twice.
package logingest
