package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/friendhub/internal/logging"
	"github.com/HammerMeetNail/friendhub/internal/models"
)

var (
	ErrMapSessionNotFound     = errors.New("map session not found")
	ErrParticipantNotFound    = errors.New("participant not found")
	ErrNotSessionCreator      = errors.New("only the session creator can approve participants")
	ErrNotApprovedParticipant = errors.New("only approved participants can add markers")
	ErrInvalidMarker          = errors.New("invalid marker")
)

const (
	EventParticipantJoined   = "participant_joined"
	EventParticipantApproved = "participant_approved"
	EventLocationUpdated     = "location_updated"
	EventMarkerAdded         = "marker_added"

	defaultMarkerType = "pin"
	maxMarkerLabelLen = 100
	maxMarkerTypeLen  = 32
)

const participantColumns = `id, session_id, user_id, status, latitude, longitude, last_updated`

// SessionEventPublisher fans session changes out to live subscribers.
type SessionEventPublisher interface {
	PublishSessionEvent(ctx context.Context, sessionID uuid.UUID, eventType string) error
}

type MapSessionOptions struct {
	// CreatorOnlyApproval makes ApproveParticipant check the caller is the
	// session creator. Off by default: any signed-in user may approve.
	CreatorOnlyApproval bool
}

type MapSessionService struct {
	db     DB
	events SessionEventPublisher
	opts   MapSessionOptions
}

func NewMapSessionService(db DB, events SessionEventPublisher, opts MapSessionOptions) *MapSessionService {
	return &MapSessionService{db: db, events: events, opts: opts}
}

// CreateSession inserts the session and its creator as an approved
// participant at (0,0) in one transaction.
func (s *MapSessionService) CreateSession(ctx context.Context, actorID uuid.UUID) (*models.MapSession, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create session transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	session := &models.MapSession{}
	err = tx.QueryRow(ctx,
		`INSERT INTO map_sessions (id, created_by, active)
		 VALUES ($1, $2, true)
		 RETURNING id, created_by, active, created_at`,
		uuid.New(), actorID,
	).Scan(&session.ID, &session.CreatedBy, &session.Active, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting map session: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO map_participants (session_id, user_id, status, latitude, longitude, last_updated)
		 VALUES ($1, $2, 'approved', 0, 0, NOW())`,
		session.ID, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session creator: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create session: %w", err)
	}
	committed = true
	return session, nil
}

// JoinSession is idempotent: an existing participant row is returned as is,
// otherwise a pending row is inserted.
func (s *MapSessionService) JoinSession(ctx context.Context, actorID, sessionID uuid.UUID) (*models.MapParticipant, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	existing, err := s.findParticipant(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	participant, err := scanParticipant(s.db.QueryRow(ctx,
		`INSERT INTO map_participants (session_id, user_id, status, latitude, longitude, last_updated)
		 VALUES ($1, $2, 'pending', 0, 0, NOW())
		 ON CONFLICT (session_id, user_id) DO NOTHING
		 RETURNING `+participantColumns,
		sessionID, actorID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with a concurrent join; return the winner's row.
		existing, err := s.findParticipant(ctx, sessionID, actorID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrParticipantNotFound
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inserting participant: %w", err)
	}

	s.publish(ctx, sessionID, EventParticipantJoined)
	return participant, nil
}

func (s *MapSessionService) ApproveParticipant(ctx context.Context, actorID, sessionID, participantID uuid.UUID) (*models.MapParticipant, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	participant, err := scanParticipant(s.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM map_participants WHERE id = $1`,
		participantID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting participant: %w", err)
	}
	if participant.SessionID != sessionID {
		return nil, ErrParticipantNotFound
	}

	if s.opts.CreatorOnlyApproval {
		var createdBy uuid.UUID
		err := s.db.QueryRow(ctx, `SELECT created_by FROM map_sessions WHERE id = $1`, sessionID).Scan(&createdBy)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMapSessionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("getting session creator: %w", err)
		}
		if createdBy != actorID {
			return nil, ErrNotSessionCreator
		}
	}

	if participant.Status == models.ParticipantApproved {
		return participant, nil
	}

	_, err = s.db.Exec(ctx,
		`UPDATE map_participants SET status = 'approved' WHERE id = $1`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("approving participant: %w", err)
	}

	participant.Status = models.ParticipantApproved
	s.publish(ctx, sessionID, EventParticipantApproved)
	return participant, nil
}

// UpdateLocation upserts the actor's position in the session. Without a
// principal it does nothing and reports no error.
func (s *MapSessionService) UpdateLocation(ctx context.Context, actorID, sessionID uuid.UUID, lat, lng float64) error {
	if actorID == uuid.Nil {
		return nil
	}
	if err := validateCoordinates(lat, lng); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO map_participants (session_id, user_id, status, latitude, longitude, last_updated)
		 SELECT $1, $2, 'pending', $3, $4, NOW()
		 WHERE EXISTS (SELECT 1 FROM map_sessions WHERE id = $1)
		 ON CONFLICT (session_id, user_id) DO UPDATE
		 SET latitude = EXCLUDED.latitude,
		     longitude = EXCLUDED.longitude,
		     last_updated = EXCLUDED.last_updated`,
		sessionID, actorID, lat, lng,
	)
	if err != nil {
		return fmt.Errorf("updating participant location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMapSessionNotFound
	}

	s.publish(ctx, sessionID, EventLocationUpdated)
	return nil
}

// GetSession returns nil without error when the session does not exist.
func (s *MapSessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.MapSessionDetail, error) {
	detail := &models.MapSessionDetail{
		Markers:      []models.MapMarker{},
		Participants: []models.ParticipantWithUser{},
	}
	err := s.db.QueryRow(ctx,
		`SELECT id, created_by, active, created_at FROM map_sessions WHERE id = $1`,
		sessionID,
	).Scan(&detail.Session.ID, &detail.Session.CreatedBy, &detail.Session.Active, &detail.Session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting map session: %w", err)
	}

	markers, err := s.listMarkers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Markers = markers

	participants, err := s.listParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail.Participants = participants

	return detail, nil
}

func (s *MapSessionService) ListSessions(ctx context.Context, actorID uuid.UUID) ([]models.MapSession, error) {
	sessions := []models.MapSession{}
	if actorID == uuid.Nil {
		return sessions, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT s.id, s.created_by, s.active, s.created_at
		 FROM map_sessions s
		 JOIN map_participants p ON p.session_id = s.id
		 WHERE p.user_id = $1
		 ORDER BY s.created_at DESC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing map sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.MapSession
		if err := rows.Scan(&m.ID, &m.CreatedBy, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning map session: %w", err)
		}
		sessions = append(sessions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating map sessions: %w", err)
	}
	return sessions, nil
}

func (s *MapSessionService) AddMarker(ctx context.Context, actorID, sessionID uuid.UUID, params models.AddMarkerParams) (*models.MapMarker, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if err := validateCoordinates(params.Latitude, params.Longitude); err != nil {
		return nil, err
	}
	params.Type = strings.TrimSpace(params.Type)
	if params.Type == "" {
		params.Type = defaultMarkerType
	}
	params.Label = strings.TrimSpace(params.Label)
	if len(params.Type) > maxMarkerTypeLen || len(params.Label) > maxMarkerLabelLen {
		return nil, ErrInvalidMarker
	}

	participant, err := s.findParticipant(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if participant == nil || participant.Status != models.ParticipantApproved {
		return nil, ErrNotApprovedParticipant
	}

	marker := &models.MapMarker{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO map_markers (session_id, latitude, longitude, type, label, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, session_id, latitude, longitude, type, label, created_by, created_at`,
		sessionID, params.Latitude, params.Longitude, params.Type, params.Label, actorID,
	).Scan(&marker.ID, &marker.SessionID, &marker.Latitude, &marker.Longitude,
		&marker.Type, &marker.Label, &marker.CreatedBy, &marker.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting marker: %w", err)
	}

	s.publish(ctx, sessionID, EventMarkerAdded)
	return marker, nil
}

// IsParticipant reports whether the user has a participant row of any status.
func (s *MapSessionService) IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	p, err := s.findParticipant(ctx, sessionID, userID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

func (s *MapSessionService) requireSession(ctx context.Context, sessionID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM map_sessions WHERE id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking map session: %w", err)
	}
	if !exists {
		return ErrMapSessionNotFound
	}
	return nil
}

func (s *MapSessionService) findParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*models.MapParticipant, error) {
	participant, err := scanParticipant(s.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM map_participants
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting participant: %w", err)
	}
	return participant, nil
}

func (s *MapSessionService) listMarkers(ctx context.Context, sessionID uuid.UUID) ([]models.MapMarker, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, latitude, longitude, type, label, created_by, created_at
		 FROM map_markers WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing markers: %w", err)
	}
	defer rows.Close()

	markers := []models.MapMarker{}
	for rows.Next() {
		var m models.MapMarker
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Latitude, &m.Longitude, &m.Type, &m.Label, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning marker: %w", err)
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating markers: %w", err)
	}
	return markers, nil
}

func (s *MapSessionService) listParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.ParticipantWithUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.session_id, p.user_id, p.status, p.latitude, p.longitude, p.last_updated,
		        u.name, u.image
		 FROM map_participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.session_id = $1
		 ORDER BY p.last_updated DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	defer rows.Close()

	participants := []models.ParticipantWithUser{}
	for rows.Next() {
		var p models.ParticipantWithUser
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Status, &p.Latitude, &p.Longitude, &p.LastUpdated, &p.Name, &p.Image); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return participants, nil
}

// publish never fails the caller; pollers pick the change up anyway.
func (s *MapSessionService) publish(ctx context.Context, sessionID uuid.UUID, eventType string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishSessionEvent(ctx, sessionID, eventType); err != nil {
		logging.Warn("Failed to publish map session event", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sessionID.String(),
			"event":      eventType,
		})
	}
}

func scanParticipant(row Row) (*models.MapParticipant, error) {
	p := &models.MapParticipant{}
	if err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Status, &p.Latitude, &p.Longitude, &p.LastUpdated); err != nil {
		return nil, err
	}
	return p, nil
}
