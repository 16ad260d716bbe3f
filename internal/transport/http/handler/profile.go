package handler

import (
	"encoding/json"
	"net/http"

	"github.com/portfolio-api/internal/application/profile"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/transport/http/middleware"
)

// ProfileHandler handles the authenticated profile and avatar endpoints.
type ProfileHandler struct {
	svc profile.Service
}

func NewProfileHandler(svc profile.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	acct, err := h.svc.Get(r.Context(), claims.AccountID())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct.Sanitized())
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acct, err := h.svc.Update(r.Context(), claims.AccountID(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct.Sanitized())
}

// UploadAvatar accepts a multipart form with a single "avatar" file field.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file field required")
		return
	}
	defer file.Close()

	acct, err := h.svc.UploadAvatar(r.Context(), claims.AccountID(), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct.Sanitized())
}
