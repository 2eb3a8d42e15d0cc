package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// ProfileHandler reads and writes sender profiles. The signature stored here
// is what finalize appends.
type ProfileHandler struct {
	Repo repository.ProfileRepositoryInterface
	Log  *zap.Logger
}

func (h *ProfileHandler) Mount(r chi.Router) {
	r.Get("/profiles/{owner}", h.GetProfileHandler)
	r.Put("/profiles/{owner}", h.PutProfileHandler)
}

func (h *ProfileHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	profile, err := h.Repo.GetProfile(r.Context(), owner)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	if profile == nil {
		// no profile yet reads as an empty one
		profile = &model.Profile{OwnerID: owner}
	}
	WriteJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) PutProfileHandler(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := DecodeJSON(r, &p); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	p.OwnerID = strings.TrimSpace(chi.URLParam(r, "owner"))
	if p.OwnerID == "" {
		WriteError(w, h.Log, appErrors.NewValidationFailed("owner", "is required"))
		return
	}
	if err := h.Repo.UpsertProfile(r.Context(), &p); err != nil {
		WriteError(w, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}
