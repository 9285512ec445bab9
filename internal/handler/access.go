package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/lsocheck/internal/i18n"
)

const (
	sessionCookieName = "lsocheck_session"
	accessCookieName  = "lsocheck_access"
)

func (h *Handler) gateEnabled() bool {
	return h.config.AccessPasswordHash != ""
}

// requireAccess rejects requests without a valid access cookie when an
// access password is configured.
func (h *Handler) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.gateEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(accessCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "access required")
			return
		}
		sess, err := h.store.GetAccessSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get access session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil {
			writeError(w, http.StatusUnauthorized, "access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type accessRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	if !h.gateEnabled() {
		writeJSON(w, http.StatusOK, map[string]bool{"granted": true})
		return
	}

	var req accessRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.config.AccessPasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("access denied", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "AccessDenied"))
		return
	}

	token, err := h.store.CreateAccessSession(h.config.AccessTTL)
	if err != nil {
		slog.Error("failed to create access session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		MaxAge:   int(h.config.AccessTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"granted": true})
}

func (h *Handler) handleAccessLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(accessCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAccessSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}
