// Package warmup ramps up sending volume for new mailboxes.
//
// Each active schedule sends a small batch of templated messages per run to
// a configured recipient list, through the regular send pipeline, until the
// day's target is met. Meeting the target advances the ramp; passing the
// target day completes it.
package warmup
