package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

type LocationService struct {
	db DBConn
}

func NewLocationService(db DBConn) *LocationService {
	return &LocationService{db: db}
}

// UpdateUserLocation stores the actor's last known position. Without a
// principal it does nothing.
func (s *LocationService) UpdateUserLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64) error {
	if actorID == uuid.Nil {
		return nil
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE users
		 SET latitude = $2, longitude = $3, location_updated_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		actorID, lat, lng,
	)
	if err != nil {
		return fmt.Errorf("updating user location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListFriendLocations returns accepted friends that have shared a position.
func (s *LocationService) ListFriendLocations(ctx context.Context, actorID uuid.UUID) ([]models.FriendLocation, error) {
	locations := []models.FriendLocation{}
	if actorID == uuid.Nil {
		return locations, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (u.id) u.id, u.name, u.image, u.latitude, u.longitude, u.location_updated_at
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.sender_id = $1 THEN fr.receiver_id ELSE fr.sender_id END
		 WHERE (fr.sender_id = $1 OR fr.receiver_id = $1)
		   AND fr.status = 'accepted'
		   AND u.latitude IS NOT NULL AND u.longitude IS NOT NULL
		 ORDER BY u.id`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loc models.FriendLocation
		if err := rows.Scan(&loc.User.ID, &loc.User.Name, &loc.User.Image, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning friend location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend locations: %w", err)
	}
	return locations, nil
}
