package handler

import (
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/lsocheck/internal/i18n"
	"github.com/pavelanni/lsocheck/internal/model"
)

// handleContact forwards the stand-alone contact form straight to the webhook.
func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	if h.contact == nil {
		writeError(w, http.StatusServiceUnavailable, "contact form is not configured")
		return
	}
	var c model.Contact
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, appI18n.Td(r.Context(), "ContactInvalid", map[string]any{"Error": err.Error()}))
		return
	}
	if err := h.contact.PostContact(r.Context(), c.Normalize()); err != nil {
		slog.Error("failed to forward contact form", "error", err)
		writeError(w, http.StatusBadGateway, appI18n.T(r.Context(), "SubmitFailed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "ContactSent")})
}
