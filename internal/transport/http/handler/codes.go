package handler

import (
	"encoding/json"
	"net/http"

	"github.com/portfolio-api/internal/application/code"
	"github.com/portfolio-api/internal/domain"
)

// CodeHandler handles the login-code endpoints.
type CodeHandler struct {
	svc code.Service
}

func NewCodeHandler(svc code.Service) *CodeHandler { return &CodeHandler{svc: svc} }

type sendCodeRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type sendCodeResponse struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (h *CodeHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Issue(r.Context(), code.IssueRequest{
		Email:     req.Email,
		Phone:     req.Phone,
		UserAgent: r.UserAgent(),
		SourceIP:  r.RemoteAddr,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendCodeResponse{
		Message: "verification code sent",
		Type:    string(res.Channel),
	})
}

type verifyCodeRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

type verifyCodeResponse struct {
	Message string          `json:"message"`
	Success bool            `json:"success"`
	User    *domain.Account `json:"user,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
}

func (h *CodeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type != "" && req.Type != string(domain.ChannelEmail) && req.Type != string(domain.ChannelSMS) {
		writeError(w, http.StatusBadRequest, "type must be \"email\" or \"sms\"")
		return
	}
	res, err := h.svc.Verify(r.Context(), code.VerifyRequest{
		Email: req.Email,
		Phone: req.Phone,
		Code:  req.Code,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyCodeResponse{
		Message: "code verified",
		Success: true,
		User:    res.Account.Sanitized(),
		Session: res.Session.Sanitized(),
	})
}
