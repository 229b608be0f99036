package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/this-th/snomed-endoproc-lookup/internal/application/services"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/entities"
	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

// SessionStore manages lookup sessions
type SessionStore interface {
	Create() *services.LookupSession
	Get(id string) (*services.LookupSession, error)
	Delete(id string) error
}

// SessionHandler exposes the result pager and detail fetcher of a lookup
// session. Search and detail failures are part of the returned session state,
// so those requests still answer 200; only requests that could not be applied
// at all get an error status.
type SessionHandler struct {
	store SessionStore
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store SessionStore) *SessionHandler {
	return &SessionHandler{store: store}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.store.Create()
	respondWithJSON(w, http.StatusCreated, session.View())
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /api/sessions/{id}/search
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var params entities.SearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := session.Pager.Search(r.Context(), params)
	h.respondWithView(w, session, err)
}

// LoadMore handles POST /api/sessions/{id}/more
func (h *SessionHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := session.Pager.LoadMore(r.Context())
	h.respondWithView(w, session, err)
}

// DismissLoadMoreError handles DELETE /api/sessions/{id}/more/error
func (h *SessionHandler) DismissLoadMoreError(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Pager.DismissLoadMoreError()
	respondWithJSON(w, http.StatusOK, session.View())
}

// Reset handles POST /api/sessions/{id}/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Pager.Reset()
	respondWithJSON(w, http.StatusOK, session.View())
}

// Select handles PUT /api/sessions/{id}/selection/{conceptId}
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	_, err := session.Details.Select(r.Context(), r.PathValue("conceptId"))
	h.respondWithView(w, session, err)
}

// ClearSelection handles DELETE /api/sessions/{id}/selection
func (h *SessionHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Details.Clear()
	respondWithJSON(w, http.StatusOK, session.View())
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.LookupSession, bool) {
	session, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) respondWithView(w http.ResponseWriter, session *services.LookupSession, err error) {
	switch {
	case err == nil:
	case errors.Is(err, services.ErrStaleResponse):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: string(apperrors.ErrorTypeConflict)})
		return
	case errors.Is(err, services.ErrLoadMoreNotAllowed):
		respondWithJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: string(apperrors.ErrorTypeConflict)})
		return
	case apperrors.IsType(err, apperrors.ErrorTypeValidation):
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session.View())
}
