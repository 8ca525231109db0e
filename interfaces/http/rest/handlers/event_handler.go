package handlers

import (
	"net/http"

	"signalwatcher/application/services"
	"signalwatcher/interfaces/http/rest/middleware"
	"signalwatcher/pkg/common"
	pkgerrors "signalwatcher/pkg/errors"

	"go.uber.org/zap"
)

// EventHandler handles event and analysis HTTP requests
type EventHandler struct {
	events   *services.EventService
	analysis *services.AnalysisService
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(
	events *services.EventService,
	analysis *services.AnalysisService,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{events: events, analysis: analysis, errors: errHandler, logger: logger}
}

// List handles GET /api/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.List(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// Simulate handles POST /api/events/simulate. It answers before the
// background analysis has run.
func (h *EventHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	req := middleware.Body[SimulateEventRequest](r)

	event, err := h.events.Simulate(r.Context(), services.SimulateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, event)
}

// Analyses handles GET /api/events/{id}/analysis
func (h *EventHandler) Analyses(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)

	analyses, err := h.events.Analyses(r.Context(), params.ID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, analyses)
}

// Analyze handles POST /api/events/{id}/analyze and waits for the result
func (h *EventHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	params := middleware.Params[IDParams](r)

	result, err := h.analysis.AnalyzeEvent(r.Context(), params.ID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
