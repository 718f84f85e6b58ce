package api

import (
	"log"
	"net/http"

	"github.com/ignite/mailcore/internal/pkg/httputil"
)

// sanitizedError logs the full internal error and returns a public-safe message.
// Use this whenever a 500-level error would otherwise include err.Error() in the response.
func sanitizedError(code int, internalErr error, publicMsg string) string {
	if internalErr != nil {
		log.Printf("[API] ERROR [%d]: %s: %v", code, publicMsg, internalErr)
	}
	return publicMsg
}

// respondSafeError logs the internal error and sends a sanitized JSON error
// response to the client.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	httputil.Error(w, code, sanitizedError(code, internalErr, publicMsg))
}
