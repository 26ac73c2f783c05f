package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/sessionservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *sessionservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *sessionservice.Service) *Handler {
	return &Handler{svc: svc}
}

func sessionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List saved sessions, most recently updated first
//	@Tags			sessions
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list sessions failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: items, Total: total})
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get a single session with its annotations
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		int	true	"Session id"
//	@Success		200	{object}	SessionDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid session id"))
		return
	}
	sess, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Session not found"))
		} else {
			slog.Error("get session failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SaveSession handles POST /api/sessions. A null session_id creates a
// session, an existing one updates it.
//
//	@Summary		Create or update a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveSessionRequest	true	"Session payload"
//	@Success		200		{object}	SessionDetail
//	@Success		201		{object}	SessionDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	var req SaveSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	sess, created, err := h.svc.Save(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("Session not found"))
		default:
			slog.Error("save session failed", slog.String("name", req.SessionName), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("Failed to save session"))
		}
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sess)
}

// DeleteSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Delete a session
//	@Tags			sessions
//	@Param			id	path	int	true	"Session id"
//	@Success		204	"Session deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid session id"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Session not found"))
		} else {
			slog.Error("delete session failed", slog.Int64("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("Failed to delete session"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
