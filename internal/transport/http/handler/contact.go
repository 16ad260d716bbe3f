package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/portfolio-api/internal/application/contact"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/pkg/validate"
)

// deliveryTimeout bounds background contact delivery, covering the webhook's
// full retry schedule.
const deliveryTimeout = 30 * time.Second

// ContactHandler handles contact-form submissions.
type ContactHandler struct {
	svc contact.Service
}

func NewContactHandler(svc contact.Service) *ContactHandler { return &ContactHandler{svc: svc} }

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var msg domain.ContactMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Accept immediately; delivery runs in the background so a slow webhook
	// or a client disconnect cannot block or abort it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), deliveryTimeout)
	go func() {
		defer cancel()
		h.svc.Submit(ctx, msg)
	}()
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "message received"})
}
