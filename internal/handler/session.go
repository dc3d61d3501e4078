package handler

import (
	"errors"
	"net/http"

	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// ListSessions returns the account's active sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	sessions, err := h.sessionSvc.ListActive(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list sessions")
		return
	}

	currentID, _ := r.Context().Value(middleware.SessionIDKey).(string)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":  sessions,
		"currentId": currentID,
	})
}

// RevokeSession revokes one of the account's sessions
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "Session ID is required")
		return
	}

	if err := h.sessionSvc.Revoke(r.Context(), accountID, sessionID); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session_not_found", "Session not found")
		case errors.Is(err, service.ErrNotOwner):
			writeError(w, http.StatusForbidden, "forbidden", "This session does not belong to you")
		default:
			h.log.Error().Err(err).Msg("failed to revoke session")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to revoke session")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Session revoked."})
}
