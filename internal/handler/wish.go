package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wishvault/wishvault/internal/middleware"
	"github.com/wishvault/wishvault/internal/service"
)

// CreateWish adds a wish to the authenticated account's list
func (h *Handler) CreateWish(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var in service.WishInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	wish, err := h.wishSvc.Create(r.Context(), accountID, in)
	if err != nil {
		h.writeWishError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wish)
}

// ListWishes returns the account's wishes, newest first
func (h *Handler) ListWishes(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	wishes, err := h.wishSvc.List(r.Context(), accountID, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list wishes")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list wishes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"wishes": wishes})
}

// GetWish returns one of the account's wishes
func (h *Handler) GetWish(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	wish, err := h.wishSvc.Get(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		h.writeWishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wish)
}

// UpdateWish replaces the editable fields of a wish
func (h *Handler) UpdateWish(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var in service.WishInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	wish, err := h.wishSvc.Update(r.Context(), accountID, r.PathValue("id"), in)
	if err != nil {
		h.writeWishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wish)
}

// DeleteWish removes a wish from the account's list
func (h *Handler) DeleteWish(w http.ResponseWriter, r *http.Request) {
	accountID, _ := r.Context().Value(middleware.AccountIDKey).(string)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.wishSvc.Delete(r.Context(), accountID, r.PathValue("id")); err != nil {
		h.writeWishError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Wish deleted."})
}

func (h *Handler) writeWishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrWishNotFound):
		writeError(w, http.StatusNotFound, "wish_not_found", "Wish not found")
	default:
		h.log.Error().Err(err).Msg("wish operation failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "The operation could not be completed")
	}
}
