package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/service/unsubscribe"
)

type unsubscribeView struct {
	Email        string `json:"email"`
	Token        string `json:"token"`
	Unsubscribed bool   `json:"unsubscribed"`
}

// HandleUnsubscribeShow returns the recipient behind an unsubscribe link.
//
//	GET /unsubscribe/{token}
func (h *Handlers) HandleUnsubscribeShow(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	u, err := h.unsubscribes.Lookup(r.Context(), token)
	if err != nil {
		h.unsubscribeError(w, err)
		return
	}
	httputil.OK(w, unsubscribeView{Email: u.Email, Token: token, Unsubscribed: u.IsProcessed()})
}

// HandleUnsubscribe confirms an unsubscribe link. The reason may come as a
// form field or a JSON body.
//
//	POST /unsubscribe/{token}
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var reason string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Reason string `json:"reason"`
		}
		if !httputil.Decode(w, r, &body) {
			return
		}
		reason = body.Reason
	} else {
		reason = r.FormValue("reason")
	}

	u, err := h.unsubscribes.Confirm(r.Context(), requestContext(r), chi.URLParam(r, "token"), strings.TrimSpace(reason))
	if err != nil {
		h.unsubscribeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"success": true,
		"email":   u.Email,
		"message": "You have been unsubscribed",
	})
}

// HandleOneClickUnsubscribe is the RFC 8058 List-Unsubscribe-Post target.
// Mailbox providers expect a plain 200.
//
//	POST /unsubscribe/one-click/{token}
func (h *Handlers) HandleOneClickUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if _, err := h.unsubscribes.OneClick(r.Context(), requestContext(r), chi.URLParam(r, "token")); err != nil {
		h.unsubscribeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Unsubscribed successfully"))
}

func (h *Handlers) unsubscribeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, unsubscribe.ErrNotFound):
		httputil.NotFound(w, "unsubscribe link not found")
	case errors.Is(err, unsubscribe.ErrReasonTooLong):
		errs := httputil.ValidationErrors{}
		errs.Add("reason", "The reason may not be greater than 500 characters.")
		httputil.Unprocessable(w, errs)
	default:
		respondSafeError(w, http.StatusInternalServerError, err, "failed to process unsubscribe")
	}
}
