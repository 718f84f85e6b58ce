package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/service/compliance"
)

// HandleComplianceExport returns every record held for an address as a
// downloadable JSON document.
//
//	POST /api/compliance/export
func (h *Handlers) HandleComplianceExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		errs := httputil.ValidationErrors{}
		errs.Add("email", "The email field must be a valid email address.")
		httputil.Unprocessable(w, errs)
		return
	}

	exp, err := h.compliance.ExportUserData(r.Context(), requestContext(r), req.Email)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to export user data")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="user_data_%s.json"`, exp.Email))
	httputil.OK(w, exp)
}

// HandleComplianceDelete erases or anonymizes an address. The caller must
// set confirmation explicitly.
//
//	POST /api/compliance/delete
func (h *Handlers) HandleComplianceDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email        string `json:"email"`
		Confirmation bool   `json:"confirmation"`
		HardDelete   bool   `json:"hard_delete"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	errs := httputil.ValidationErrors{}
	if !validEmail(req.Email) {
		errs.Add("email", "The email field must be a valid email address.")
	}
	if !req.Confirmation {
		errs.Add("confirmation", "The confirmation must be accepted.")
	}
	if len(errs) > 0 {
		httputil.Unprocessable(w, errs)
		return
	}

	res, err := h.compliance.DeleteUserData(r.Context(), requestContext(r), req.Email, req.HardDelete)
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to delete user data")
		return
	}
	httputil.OK(w, map[string]any{
		"success":        true,
		"message":        "User data has been deleted/anonymized",
		"deleted_counts": res,
	})
}

// HandleComplianceReport summarizes a domain's compliance over ?days=N
// (default 30).
//
//	GET /api/compliance/report/{domainID}
func (h *Handlers) HandleComplianceReport(w http.ResponseWriter, r *http.Request) {
	domainID := chi.URLParam(r, "domainID")
	if _, err := uuid.Parse(domainID); err != nil {
		httputil.NotFound(w, "domain not found")
		return
	}
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "days must be an integer")
			return
		}
		days = n
	}

	report, err := h.compliance.GenerateComplianceReport(r.Context(), domainID, days)
	if errors.Is(err, compliance.ErrInvalidDays) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to generate report")
		return
	}
	httputil.OK(w, report)
}
