package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantApproved ParticipantStatus = "approved"
)

type MapSession struct {
	ID        uuid.UUID `json:"id"`
	CreatedBy uuid.UUID `json:"created_by"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type MapParticipant struct {
	ID          uuid.UUID         `json:"id"`
	SessionID   uuid.UUID         `json:"session_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Status      ParticipantStatus `json:"status"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	LastUpdated time.Time         `json:"last_updated"`
}

// ParticipantWithUser joins a participant with the user's display fields.
type ParticipantWithUser struct {
	MapParticipant
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

type MapMarker struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Type      string    `json:"type"`
	Label     string    `json:"label"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type AddMarkerParams struct {
	Latitude  float64
	Longitude float64
	Type      string
	Label     string
}

// MapSessionDetail is the polled view of a session. Participants are not
// filtered by status.
type MapSessionDetail struct {
	Session      MapSession            `json:"session"`
	Markers      []MapMarker           `json:"markers"`
	Participants []ParticipantWithUser `json:"participants"`
}
