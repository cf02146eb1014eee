package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/HammerMeetNail/friendhub/internal/models"
	"github.com/HammerMeetNail/friendhub/internal/services"
)

// pollIntervalHeader tells polling clients how often to re-read a session.
const pollIntervalHeader = "X-Poll-Interval-Ms"

type MapSessionHandler struct {
	mapService   services.MapSessionServiceInterface
	pollInterval time.Duration
}

func NewMapSessionHandler(mapService services.MapSessionServiceInterface, pollInterval time.Duration) *MapSessionHandler {
	return &MapSessionHandler{mapService: mapService, pollInterval: pollInterval}
}

type MapSessionResponse struct {
	Session *models.MapSession `json:"session"`
}

type MapSessionListResponse struct {
	Sessions []models.MapSession `json:"sessions"`
}

type ParticipantResponse struct {
	Participant *models.MapParticipant `json:"participant"`
}

type MarkerResponse struct {
	Marker *models.MapMarker `json:"marker"`
}

type AddMarkerRequest struct {
	Coordinates
	Type  string `json:"type"`
	Label string `json:"label"`
}

// emptySessionDetail is returned for unknown sessions so pollers keep one
// response shape.
var emptySessionDetail = struct {
	Session      *models.MapSession           `json:"session"`
	Markers      []models.MapMarker           `json:"markers"`
	Participants []models.ParticipantWithUser `json:"participants"`
}{Markers: []models.MapMarker{}, Participants: []models.ParticipantWithUser{}}

func (h *MapSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := h.mapService.CreateSession(r.Context(), actorID(r.Context()))
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	if err != nil {
		writeInternalError(w, r, "create map session", err)
		return
	}
	writeJSON(w, http.StatusCreated, MapSessionResponse{Session: session})
}

func (h *MapSessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.mapService.ListSessions(r.Context(), actorID(r.Context()))
	if err != nil {
		writeInternalError(w, r, "list map sessions", err)
		return
	}
	if sessions == nil {
		sessions = []models.MapSession{}
	}
	writeJSON(w, http.StatusOK, MapSessionListResponse{Sessions: sessions})
}

// Get is the polled read. Participants of every status are included.
func (h *MapSessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}

	detail, err := h.mapService.GetSession(r.Context(), sessionID)
	if err != nil {
		writeInternalError(w, r, "get map session", err)
		return
	}
	if h.pollInterval > 0 {
		w.Header().Set(pollIntervalHeader, strconv.FormatInt(h.pollInterval.Milliseconds(), 10))
	}
	if detail == nil {
		writeJSON(w, http.StatusOK, emptySessionDetail)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *MapSessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}

	participant, err := h.mapService.JoinSession(r.Context(), actorID(r.Context()), sessionID)
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	if errors.Is(err, services.ErrMapSessionNotFound) {
		writeError(w, http.StatusNotFound, "Map session not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "join map session", err)
		return
	}
	writeJSON(w, http.StatusOK, ParticipantResponse{Participant: participant})
}

func (h *MapSessionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}
	participantID, ok := pathUUID(w, r, "participantId", "participant ID")
	if !ok {
		return
	}

	participant, err := h.mapService.ApproveParticipant(r.Context(), actorID(r.Context()), sessionID, participantID)
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrParticipantNotFound):
		writeError(w, http.StatusNotFound, "Participant not found")
	case errors.Is(err, services.ErrMapSessionNotFound):
		writeError(w, http.StatusNotFound, "Map session not found")
	case errors.Is(err, services.ErrNotSessionCreator):
		writeError(w, http.StatusForbidden, "Only the session creator can approve participants")
	case err != nil:
		writeInternalError(w, r, "approve participant", err)
	default:
		writeJSON(w, http.StatusOK, ParticipantResponse{Participant: participant})
	}
}

// UpdateLocation upserts the caller's position in the session. Anonymous
// callers get a 204 and nothing is written.
func (h *MapSessionHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}
	var req Coordinates
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	err := h.mapService.UpdateLocation(r.Context(), actorID(r.Context()), sessionID, *req.Latitude, *req.Longitude)
	switch {
	case errors.Is(err, services.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "Invalid coordinates")
	case errors.Is(err, services.ErrMapSessionNotFound):
		writeError(w, http.StatusNotFound, "Map session not found")
	case err != nil:
		writeInternalError(w, r, "update session location", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *MapSessionHandler) AddMarker(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}
	var req AddMarkerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	marker, err := h.mapService.AddMarker(r.Context(), actorID(r.Context()), sessionID, models.AddMarkerParams{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Type:      req.Type,
		Label:     req.Label,
	})
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidCoordinates):
		writeError(w, http.StatusBadRequest, "Invalid coordinates")
	case errors.Is(err, services.ErrInvalidMarker):
		writeError(w, http.StatusBadRequest, "Marker type or label is too long")
	case errors.Is(err, services.ErrNotApprovedParticipant):
		writeError(w, http.StatusForbidden, "Only approved participants can add markers")
	case err != nil:
		writeInternalError(w, r, "add marker", err)
	default:
		writeJSON(w, http.StatusCreated, MarkerResponse{Marker: marker})
	}
}
