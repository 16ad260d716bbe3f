package handler

import (
	"encoding/json"
	"net/http"

	"github.com/portfolio-api/internal/application/twofactor"
	"github.com/portfolio-api/internal/transport/http/middleware"
)

// TwoFactorHandler handles TOTP setup and verification endpoints.
type TwoFactorHandler struct {
	svc twofactor.Service
}

func NewTwoFactorHandler(svc twofactor.Service) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc}
}

// twoFactorAction is the parsed form of the request's "action" field.
type twoFactorAction int

const (
	actionSetup twoFactorAction = iota
	actionVerify
)

func parseTwoFactorAction(s string) (twoFactorAction, bool) {
	switch s {
	case "setup":
		return actionSetup, true
	case "verify":
		return actionVerify, true
	}
	return 0, false
}

type setupResponse struct {
	Secret         string `json:"secret"`
	QRCode         string `json:"qrCode"`
	ManualEntryKey string `json:"manualEntryKey"`
}

func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.svc.BeginSetup(r.Context(), claims.AccountID())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{
		Secret:         res.Secret,
		QRCode:         res.QRCode,
		ManualEntryKey: res.Secret,
	})
}

type verifyTwoFactorRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

type verifyTwoFactorResponse struct {
	Message  string `json:"message"`
	Enabled  bool   `json:"enabled,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req verifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}
	action, ok := parseTwoFactorAction(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "action must be \"setup\" or \"verify\"")
		return
	}

	switch action {
	case actionSetup:
		if err := h.svc.ConfirmSetup(r.Context(), claims.AccountID(), req.Token); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyTwoFactorResponse{
			Message: "two-factor authentication enabled",
			Enabled: true,
		})
	case actionVerify:
		valid, err := h.svc.VerifyLogin(r.Context(), claims.AccountID(), req.Token)
		if err != nil {
			httpError(w, err)
			return
		}
		if !valid {
			writeError(w, http.StatusBadRequest, "invalid two-factor code")
			return
		}
		writeJSON(w, http.StatusOK, verifyTwoFactorResponse{
			Message:  "two-factor code verified",
			Verified: true,
		})
	}
}

func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Disable(r.Context(), claims.AccountID()); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "two-factor authentication disabled"})
}
