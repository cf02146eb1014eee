package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/friendhub/internal/models"
	"github.com/HammerMeetNail/friendhub/internal/services"
)

type LocationHandler struct {
	locationService services.LocationServiceInterface
}

func NewLocationHandler(locationService services.LocationServiceInterface) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

type FriendLocationsResponse struct {
	Locations []models.FriendLocation `json:"locations"`
}

// UpdateMine stores the caller's position. Anonymous callers get a 204 and
// nothing is written.
func (h *LocationHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	var req Coordinates
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	err := h.locationService.UpdateUserLocation(r.Context(), actorID(r.Context()), *req.Latitude, *req.Longitude)
	if errors.Is(err, services.ErrInvalidCoordinates) {
		writeError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "update user location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationHandler) FriendLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locationService.ListFriendLocations(r.Context(), actorID(r.Context()))
	if err != nil {
		writeInternalError(w, r, "list friend locations", err)
		return
	}
	if locations == nil {
		locations = []models.FriendLocation{}
	}
	writeJSON(w, http.StatusOK, FriendLocationsResponse{Locations: locations})
}
