// Package bounce reconciles bounce records with send logs and suppresses
// recipients that hard bounce repeatedly.
package bounce
