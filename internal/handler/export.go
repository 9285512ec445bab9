package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const adminUser = "admin"

// requireAdmin checks HTTP basic credentials against the admin password.
// The visitor access cookie is not enough: export exposes every lead.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.AdminPasswordHash == "" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != adminUser ||
			bcrypt.CompareHashAndPassword([]byte(h.config.AdminPasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="lsocheck admin"`)
			writeError(w, http.StatusUnauthorized, "admin credentials required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleExport returns every stored submission.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := h.store.ExportAllSubmissions()
	if err != nil {
		slog.Error("failed to export submissions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	slog.Info("exported submissions via api", "count", exp.Total)
	writeJSON(w, http.StatusOK, exp)
}
