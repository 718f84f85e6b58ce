package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/service/consent"
)

type grantRequest struct {
	Email        string               `json:"email"`
	ConsentTypes []domain.ConsentType `json:"consent_types"`
	Method       domain.ConsentMethod `json:"method"`
	ExpiresAt    *time.Time           `json:"expires_at"`
}

// HandleConsentGrant records consent for one or more types. Double opt-in
// grants stay pending until the emailed token is verified.
//
//	POST /consent/grant
func (h *Handlers) HandleConsentGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	errs := httputil.ValidationErrors{}
	if !validEmail(req.Email) {
		errs.Add("email", "The email field must be a valid email address.")
	}
	if len(req.ConsentTypes) == 0 {
		errs.Add("consent_types", "The consent types field is required.")
	}
	for _, t := range req.ConsentTypes {
		if !consent.ValidType(t) {
			errs.Add("consent_types", "The selected consent type "+string(t)+" is invalid.")
		}
	}
	if req.Method != "" && !req.Method.Valid() {
		errs.Add("method", "The selected method is invalid.")
	}
	if len(errs) > 0 {
		httputil.Unprocessable(w, errs)
		return
	}

	rc := requestContext(r)
	records := make([]*domain.ConsentRecord, 0, len(req.ConsentTypes))
	for _, t := range req.ConsentTypes {
		c, err := h.consents.Grant(r.Context(), rc, consent.GrantRequest{
			Email:     req.Email,
			Type:      t,
			Method:    req.Method,
			ExpiresAt: req.ExpiresAt,
			Metadata:  map[string]any{"user_agent": rc.UserAgent},
		})
		if err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "failed to record consent")
			return
		}
		records = append(records, c)
	}
	httputil.Created(w, map[string]any{
		"success":  true,
		"email":    req.Email,
		"consents": records,
	})
}

// HandleConsentVerify completes a double opt-in.
//
//	GET /consent/verify/{token}
func (h *Handlers) HandleConsentVerify(w http.ResponseWriter, r *http.Request) {
	c, err := h.consents.Verify(r.Context(), requestContext(r), chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, consent.ErrNotFound):
		httputil.NotFound(w, "verification link not found")
		return
	case errors.Is(err, consent.ErrAlreadyVerified):
		httputil.OK(w, map[string]any{"success": true, "already_verified": true})
		return
	case errors.Is(err, consent.ErrNotDoubleOptIn):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		respondSafeError(w, http.StatusInternalServerError, err, "failed to verify consent")
		return
	}
	httputil.OK(w, map[string]any{
		"success":      true,
		"email":        c.Email,
		"consent_type": c.ConsentType,
	})
}

type revokeRequest struct {
	Email       string             `json:"email"`
	ConsentType domain.ConsentType `json:"consent_type"`
	Reason      string             `json:"reason"`
}

// HandleConsentRevoke withdraws consent of one type, or every type for "all".
//
//	POST /consent/revoke
func (h *Handlers) HandleConsentRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	errs := httputil.ValidationErrors{}
	if !validEmail(req.Email) {
		errs.Add("email", "The email field must be a valid email address.")
	}
	if req.ConsentType != domain.ConsentAll && !consent.ValidType(req.ConsentType) {
		errs.Add("consent_type", "The selected consent type is invalid.")
	}
	if len([]rune(req.Reason)) > 500 {
		errs.Add("reason", "The reason may not be greater than 500 characters.")
	}
	if len(errs) > 0 {
		httputil.Unprocessable(w, errs)
		return
	}

	n, err := h.consents.Revoke(r.Context(), requestContext(r), req.Email, req.ConsentType, req.Reason)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to revoke consent")
		return
	}
	httputil.OK(w, map[string]any{
		"success": true,
		"revoked": n,
		"message": "Consent revoked successfully",
	})
}
