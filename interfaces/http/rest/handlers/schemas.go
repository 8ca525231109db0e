package handlers

import (
	"signalwatcher/domain/core/valueobjects"
)

// CreateWatchlistRequest represents the request body for creating a watchlist
type CreateWatchlistRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
}

// UpdateWatchlistRequest represents the request body for updating a watchlist
type UpdateWatchlistRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
}

// AddTermRequest represents the request body for adding a term
type AddTermRequest struct {
	Term string `json:"term" validate:"required,min=1,max=50"`
}

// SimulateEventRequest represents the request body for simulating an event
type SimulateEventRequest struct {
	Title       string                `json:"title" validate:"required,min=1,max=200"`
	Description string                `json:"description" validate:"required,min=1,max=1000"`
	Severity    valueobjects.Severity `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// IDParams is the {id} path parameter
type IDParams struct {
	ID string `param:"id" validate:"required,resourceid"`
}

// TermParams are the path parameters of a term route
type TermParams struct {
	ID     string `param:"id" validate:"required,resourceid"`
	TermID string `param:"termId" validate:"required,resourceid"`
}

// Schema factories used by the router
func NewCreateWatchlistRequest() any { return &CreateWatchlistRequest{} }
func NewUpdateWatchlistRequest() any { return &UpdateWatchlistRequest{} }
func NewAddTermRequest() any         { return &AddTermRequest{} }
func NewSimulateEventRequest() any   { return &SimulateEventRequest{} }
func NewIDParams() any               { return &IDParams{} }
func NewTermParams() any             { return &TermParams{} }
