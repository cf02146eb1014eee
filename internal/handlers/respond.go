package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/logging"
	"github.com/HammerMeetNail/friendhub/internal/services"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeInternalError logs err with the failing operation and hides it from
// the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.Error("Request failed", map[string]interface{}{
		"op":     op,
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err.Error(),
	})
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeUnauthorizedIfNeeded handles the shared ErrUnauthorized case and
// reports whether it wrote a response.
func writeUnauthorizedIfNeeded(w http.ResponseWriter, err error) bool {
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return true
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

// Coordinates is the request body shape for every location write.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (c Coordinates) valid() bool {
	return c.Latitude != nil && c.Longitude != nil
}
