package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/friendhub/internal/services/places"
)

type PlacesService interface {
	Search(ctx context.Context, query string) (places.Result, error)
	Nearby(ctx context.Context, lat, lng float64, radius int) (places.Result, error)
}

type PlacesHandler struct {
	service PlacesService
}

func NewPlacesHandler(service PlacesService) *PlacesHandler {
	return &PlacesHandler{service: service}
}

// Search geocodes ?q=. Upstream failures come back as a 200 with
// success=false so the map can keep rendering.
func (h *PlacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if errors.Is(err, places.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, "q must be between 1 and 200 characters")
		return
	}
	if err != nil {
		writeInternalError(w, r, "search places", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PlacesHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := 0
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "radius must be a positive integer")
			return
		}
		radius = v
	}

	result, err := h.service.Nearby(r.Context(), lat, lng, radius)
	if errors.Is(err, places.ErrInvalidLocation) {
		writeError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}
	if err != nil {
		writeInternalError(w, r, "nearby places", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
