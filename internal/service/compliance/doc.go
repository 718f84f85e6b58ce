// Package compliance implements the send-time compliance gate and the GDPR
// data subject operations.
//
// CanSendEmail evaluates every rule and collects all reasons rather than
// stopping at the first one, then writes a single audit entry with the
// verdict. It never mutates quotas. Infrastructure errors from the
// collaborators are returned to the caller unchanged.
package compliance
