package handlers

import (
	"net/http"

	"signalwatcher/application/services"
	"signalwatcher/domain/core/entities"
	"signalwatcher/interfaces/http/rest/middleware"
	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"

	"go.uber.org/zap"
)

// WatchlistHandler handles watchlist-related HTTP requests. Bodies and path
// parameters arrive already validated.
type WatchlistHandler struct {
	service *services.WatchlistService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(service *services.WatchlistService, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *WatchlistHandler {
	return &WatchlistHandler{service: service, errors: errHandler, logger: logger}
}

// List handles GET /api/watchlists
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// Create handles POST /api/watchlists
func (h *WatchlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := middleware.Body[CreateWatchlistRequest](r)

	watchlist, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, watchlist)
}

// Get handles GET /api/watchlists/{id}
func (h *WatchlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)

	watchlist, err := h.service.Get(r.Context(), params.ID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, watchlist)
}

// Update handles PUT /api/watchlists/{id}
func (h *WatchlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)
	req := middleware.Body[UpdateWatchlistRequest](r)

	watchlist, err := h.service.Update(r.Context(), params.ID, entities.WatchlistChanges{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, watchlist)
}

// Delete handles DELETE /api/watchlists/{id}
func (h *WatchlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)

	if err := h.service.Delete(r.Context(), params.ID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// AddTerm handles POST /api/watchlists/{id}/terms
func (h *WatchlistHandler) AddTerm(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)
	req := middleware.Body[AddTermRequest](r)

	term, err := h.service.AddTerm(r.Context(), params.ID, req.Term)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, term)
}

// DeleteTerm handles DELETE /api/watchlists/{id}/terms/{termId}
func (h *WatchlistHandler) DeleteTerm(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[TermParams](r)

	if err := h.service.DeleteTerm(r.Context(), params.ID, params.TermID); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
