// Package spamfilter computes the composite filter score that can reject a
// send outright, and records spam complaints fed back from recipients and
// feedback loops.
//
// The composite score sums sub-scores for recipient suppression, sender
// complaint rate, sending IP reputation, content analysis and the per-sender
// rate limit. A score of 100 or more recommends REJECT; suppression alone
// contributes 100.
package spamfilter
