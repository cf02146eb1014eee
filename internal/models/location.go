package models

import "time"

// FriendLocation is an accepted friend with a known position.
type FriendLocation struct {
	User      UserSummary `json:"user"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	UpdatedAt *time.Time  `json:"updated_at"`
}
