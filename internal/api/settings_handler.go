package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/service/settings"
)

// HandleListSettings lists settings; ?public=true limits to public ones.
//
//	GET /api/settings
func (h *Handlers) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.settings.List(r.Context(), r.URL.Query().Get("public") == "true")
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to list settings")
		return
	}
	if list == nil {
		list = []domain.Setting{}
	}
	httputil.OK(w, list)
}

// HandleGetSetting returns one setting.
//
//	GET /api/settings/{key}
func (h *Handlers) HandleGetSetting(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context(), chi.URLParam(r, "key"))
	if errors.Is(err, settings.ErrNotFound) {
		httputil.NotFound(w, "setting not found")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to load setting")
		return
	}
	httputil.OK(w, st)
}

type settingRequest struct {
	Type        domain.SettingKind `json:"type"`
	Value       string             `json:"value"`
	Description string             `json:"description"`
	IsPublic    bool               `json:"is_public"`
}

// HandlePutSetting creates or replaces a setting. Value is the raw string
// form, decoded according to type.
//
//	PUT /api/settings/{key}
func (h *Handlers) HandlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = domain.KindString
	}
	st, err := h.settings.Set(r.Context(), chi.URLParam(r, "key"), req.Type, req.Value, req.Description, req.IsPublic)
	switch {
	case errors.Is(err, settings.ErrInvalidKey):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		errs := httputil.ValidationErrors{}
		errs.Add("value", err.Error())
		httputil.Unprocessable(w, errs)
	case err != nil:
		respondSafeError(w, http.StatusInternalServerError, err, "failed to save setting")
	default:
		httputil.OK(w, st)
	}
}
