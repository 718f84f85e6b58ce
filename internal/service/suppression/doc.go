// Package suppression implements the suppression list service.
//
// This is the single source of truth for whether an address may receive
// mail at all. Entries flow in from the hard-bounce sweep, feedback loop
// complaints, unsubscribe links, GDPR deletions and manual admin actions,
// and are checked before every send regardless of email type.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package suppression
