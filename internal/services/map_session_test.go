package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

type recordedEvent struct {
	sessionID uuid.UUID
	eventType string
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishSessionEvent(ctx context.Context, sessionID uuid.UUID, eventType string) error {
	f.events = append(f.events, recordedEvent{sessionID: sessionID, eventType: eventType})
	return f.err
}

func participantRow(id, sessionID, userID uuid.UUID, status models.ParticipantStatus) []any {
	return []any{id, sessionID, userID, status, 0.0, 0.0, time.Now()}
}

func TestMapSessionService_CreateSession_InsertsApprovedCreator(t *testing.T) {
	creator := uuid.New()
	committed := false
	var participantSQL string
	var participantArgs []any

	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if args[0].(uuid.UUID) == uuid.Nil {
				t.Error("expected generated session id")
			}
			return rowFromValues(args[0], args[1], true, time.Now())
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			participantSQL = sql
			participantArgs = args
			return fakeCommandTag{rowsAffected: 1}, nil
		},
		CommitFunc: func(ctx context.Context) error {
			committed = true
			return nil
		},
	}
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	session, err := service.CreateSession(context.Background(), creator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.CreatedBy != creator || !session.Active {
		t.Fatalf("unexpected session %+v", session)
	}
	if !strings.Contains(participantSQL, "'approved', 0, 0") {
		t.Fatalf("expected creator inserted approved at (0,0), got %s", participantSQL)
	}
	if participantArgs[0] != session.ID || participantArgs[1] != creator {
		t.Fatalf("unexpected participant args %v", participantArgs)
	}
	if !committed {
		t.Fatal("expected commit")
	}
}

func TestMapSessionService_CreateSession_RollsBackOnParticipantFailure(t *testing.T) {
	rolledBack := false
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(args[0], args[1], true, time.Now())
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return nil, errors.New("insert failed")
		},
		CommitFunc: func(ctx context.Context) error {
			t.Fatal("unexpected commit")
			return nil
		},
		RollbackFunc: func(ctx context.Context) error {
			rolledBack = true
			return nil
		},
	}
	db := &fakeDB{BeginFunc: func(ctx context.Context) (Tx, error) { return tx, nil }}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	if _, err := service.CreateSession(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
	if !rolledBack {
		t.Fatal("expected rollback")
	}
}

func TestMapSessionService_CreateSession_Unauthenticated(t *testing.T) {
	service := NewMapSessionService(&fakeDB{}, nil, MapSessionOptions{})
	if _, err := service.CreateSession(context.Background(), uuid.Nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMapSessionService_JoinSession_ExistingRowIsReturned(t *testing.T) {
	sessionID, userID, participantID := uuid.New(), uuid.New(), uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "INSERT") {
				t.Fatal("unexpected insert for an existing participant")
			}
			return rowFromValues(participantRow(participantID, sessionID, userID, models.ParticipantApproved)...)
		},
	}
	events := &fakePublisher{}

	service := NewMapSessionService(db, events, MapSessionOptions{})
	p, err := service.JoinSession(context.Background(), userID, sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != participantID || p.Status != models.ParticipantApproved {
		t.Fatalf("expected existing approved row, got %+v", p)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no event for idempotent join, got %v", events.events)
	}
}

func TestMapSessionService_JoinSession_InsertsPending(t *testing.T) {
	sessionID, userID := uuid.New(), uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "SELECT EXISTS"):
				return rowFromValues(true)
			case strings.Contains(sql, "INSERT INTO map_participants"):
				if !strings.Contains(sql, "ON CONFLICT (session_id, user_id) DO NOTHING") {
					t.Errorf("expected conflict guard, got %s", sql)
				}
				return rowFromValues(participantRow(uuid.New(), sessionID, userID, models.ParticipantPending)...)
			default:
				return errRow(pgx.ErrNoRows)
			}
		},
	}
	events := &fakePublisher{}

	service := NewMapSessionService(db, events, MapSessionOptions{})
	p, err := service.JoinSession(context.Background(), userID, sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != models.ParticipantPending {
		t.Fatalf("expected pending, got %s", p.Status)
	}
	if len(events.events) != 1 || events.events[0].eventType != EventParticipantJoined {
		t.Fatalf("expected participant_joined event, got %v", events.events)
	}
}

func TestMapSessionService_JoinSession_ConflictRereads(t *testing.T) {
	sessionID, userID, winnerID := uuid.New(), uuid.New(), uuid.New()
	lookups := 0
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			switch {
			case strings.Contains(sql, "SELECT EXISTS"):
				return rowFromValues(true)
			case strings.Contains(sql, "INSERT"):
				return errRow(pgx.ErrNoRows)
			default:
				lookups++
				if lookups == 1 {
					return errRow(pgx.ErrNoRows)
				}
				return rowFromValues(participantRow(winnerID, sessionID, userID, models.ParticipantPending)...)
			}
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	p, err := service.JoinSession(context.Background(), userID, sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != winnerID {
		t.Fatalf("expected concurrent winner's row, got %v", p.ID)
	}
}

func TestMapSessionService_JoinSession_MissingSession(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "SELECT EXISTS") {
				return rowFromValues(false)
			}
			return errRow(pgx.ErrNoRows)
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	_, err := service.JoinSession(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrMapSessionNotFound) {
		t.Fatalf("expected ErrMapSessionNotFound, got %v", err)
	}
}

func TestMapSessionService_ApproveParticipant(t *testing.T) {
	creator, joiner, outsider := uuid.New(), uuid.New(), uuid.New()
	sessionID, participantID := uuid.New(), uuid.New()

	tests := []struct {
		name        string
		actor       uuid.UUID
		creatorOnly bool
		wantErr     error
	}{
		{name: "any user may approve by default", actor: outsider},
		{name: "creator approves with creator-only", actor: creator, creatorOnly: true},
		{name: "outsider blocked with creator-only", actor: outsider, creatorOnly: true, wantErr: ErrNotSessionCreator},
		{name: "anonymous", actor: uuid.Nil, wantErr: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			db := &fakeDB{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					if strings.Contains(sql, "created_by FROM map_sessions") {
						return rowFromValues(creator)
					}
					return rowFromValues(participantRow(participantID, sessionID, joiner, models.ParticipantPending)...)
				},
				ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
					updated = true
					return fakeCommandTag{rowsAffected: 1}, nil
				},
			}
			events := &fakePublisher{}

			service := NewMapSessionService(db, events, MapSessionOptions{CreatorOnlyApproval: tt.creatorOnly})
			p, err := service.ApproveParticipant(context.Background(), tt.actor, sessionID, participantID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if updated {
					t.Fatal("expected no update on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Status != models.ParticipantApproved || !updated {
				t.Fatalf("expected approved participant, got %+v", p)
			}
			if len(events.events) != 1 || events.events[0].eventType != EventParticipantApproved {
				t.Fatalf("expected participant_approved event, got %v", events.events)
			}
		})
	}
}

func TestMapSessionService_ApproveParticipant_WrongSession(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(participantRow(uuid.New(), uuid.New(), uuid.New(), models.ParticipantPending)...)
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	_, err := service.ApproveParticipant(context.Background(), uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestMapSessionService_ApproveParticipant_NotFound(t *testing.T) {
	service := NewMapSessionService(&fakeDB{}, nil, MapSessionOptions{})
	_, err := service.ApproveParticipant(context.Background(), uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestMapSessionService_UpdateLocation_UnauthenticatedIsNoop(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			t.Fatal("unexpected mutation for anonymous actor")
			return nil, nil
		},
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			t.Fatal("unexpected query for anonymous actor")
			return nil
		},
	}
	events := &fakePublisher{}

	service := NewMapSessionService(db, events, MapSessionOptions{})
	if err := service.UpdateLocation(context.Background(), uuid.Nil, uuid.New(), 10, 20); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(events.events) != 0 {
		t.Fatal("expected no event")
	}
}

func TestMapSessionService_UpdateLocation_Upserts(t *testing.T) {
	sessionID, userID := uuid.New(), uuid.New()
	var gotArgs []any
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "ON CONFLICT (session_id, user_id) DO UPDATE") {
				t.Errorf("expected upsert, got %s", sql)
			}
			gotArgs = args
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	events := &fakePublisher{err: errors.New("redis down")}

	service := NewMapSessionService(db, events, MapSessionOptions{})
	if err := service.UpdateLocation(context.Background(), userID, sessionID, 51.5, -0.12); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotArgs[0] != sessionID || gotArgs[1] != userID || gotArgs[2] != 51.5 || gotArgs[3] != -0.12 {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if len(events.events) != 1 || events.events[0].eventType != EventLocationUpdated {
		t.Fatalf("expected location_updated event despite publish failure, got %v", events.events)
	}
}

func TestMapSessionService_UpdateLocation_MissingSession(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	err := service.UpdateLocation(context.Background(), uuid.New(), uuid.New(), 1, 1)
	if !errors.Is(err, ErrMapSessionNotFound) {
		t.Fatalf("expected ErrMapSessionNotFound, got %v", err)
	}
}

func TestMapSessionService_UpdateLocation_InvalidCoordinates(t *testing.T) {
	service := NewMapSessionService(&fakeDB{}, nil, MapSessionOptions{})
	err := service.UpdateLocation(context.Background(), uuid.New(), uuid.New(), 120, 0)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestMapSessionService_GetSession_Missing(t *testing.T) {
	service := NewMapSessionService(&fakeDB{}, nil, MapSessionOptions{})
	detail, err := service.GetSession(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail != nil {
		t.Fatalf("expected nil detail, got %+v", detail)
	}
}

func TestMapSessionService_GetSession_IncludesPendingParticipants(t *testing.T) {
	sessionID, creator, joiner := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(sessionID, creator, true, now)
		},
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if strings.Contains(sql, "FROM map_markers") {
				return &fakeRows{rows: [][]any{
					{uuid.New(), sessionID, 1.0, 2.0, "pin", "Lunch", creator, now},
				}}, nil
			}
			return &fakeRows{rows: [][]any{
				append(participantRow(uuid.New(), sessionID, creator, models.ParticipantApproved), "Ana", nil),
				append(participantRow(uuid.New(), sessionID, joiner, models.ParticipantPending), "Ben", "https://img/ben.png"),
			}}, nil
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	detail, err := service.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Session.ID != sessionID {
		t.Fatalf("unexpected session %+v", detail.Session)
	}
	if len(detail.Markers) != 1 || detail.Markers[0].Label != "Lunch" {
		t.Fatalf("unexpected markers %+v", detail.Markers)
	}
	if len(detail.Participants) != 2 {
		t.Fatalf("expected both participants, got %d", len(detail.Participants))
	}
	if detail.Participants[1].Status != models.ParticipantPending || detail.Participants[1].Name != "Ben" {
		t.Fatalf("expected pending participant to be visible, got %+v", detail.Participants[1])
	}
}

func TestMapSessionService_AddMarker(t *testing.T) {
	sessionID, userID := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		status   models.ParticipantStatus
		joined   bool
		params   models.AddMarkerParams
		wantErr  error
		wantType string
	}{
		{name: "approved with default type", status: models.ParticipantApproved, joined: true, params: models.AddMarkerParams{Latitude: 1, Longitude: 2, Label: " Meet here "}, wantType: "pin"},
		{name: "approved with type", status: models.ParticipantApproved, joined: true, params: models.AddMarkerParams{Latitude: 1, Longitude: 2, Type: "food"}, wantType: "food"},
		{name: "pending", status: models.ParticipantPending, joined: true, params: models.AddMarkerParams{Latitude: 1, Longitude: 2}, wantErr: ErrNotApprovedParticipant},
		{name: "not joined", params: models.AddMarkerParams{Latitude: 1, Longitude: 2}, wantErr: ErrNotApprovedParticipant},
		{name: "label too long", status: models.ParticipantApproved, joined: true, params: models.AddMarkerParams{Label: strings.Repeat("x", 101)}, wantErr: ErrInvalidMarker},
		{name: "bad coordinates", status: models.ParticipantApproved, joined: true, params: models.AddMarkerParams{Latitude: -91}, wantErr: ErrInvalidCoordinates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
					if strings.Contains(sql, "INSERT INTO map_markers") {
						return rowFromValues(uuid.New(), args[0], args[1], args[2], args[3], args[4], args[5], time.Now())
					}
					if !tt.joined {
						return errRow(pgx.ErrNoRows)
					}
					return rowFromValues(participantRow(uuid.New(), sessionID, userID, tt.status)...)
				},
			}
			events := &fakePublisher{}

			service := NewMapSessionService(db, events, MapSessionOptions{})
			marker, err := service.AddMarker(context.Background(), userID, sessionID, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker.Type != tt.wantType || marker.CreatedBy != userID {
				t.Fatalf("unexpected marker %+v", marker)
			}
			if marker.Label != strings.TrimSpace(tt.params.Label) {
				t.Fatalf("expected trimmed label, got %q", marker.Label)
			}
			if len(events.events) != 1 || events.events[0].eventType != EventMarkerAdded {
				t.Fatalf("expected marker_added event, got %v", events.events)
			}
		})
	}
}

func TestMapSessionService_ListSessions(t *testing.T) {
	userID := uuid.New()

	service := NewMapSessionService(&fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if args[0] != userID {
				t.Errorf("expected actor arg, got %v", args[0])
			}
			return &fakeRows{rows: [][]any{{uuid.New(), userID, true, time.Now()}}}, nil
		},
	}, nil, MapSessionOptions{})

	sessions, err := service.ListSessions(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	anon, err := service.ListSessions(context.Background(), uuid.Nil)
	if err != nil || anon == nil || len(anon) != 0 {
		t.Fatalf("expected empty list for anonymous actor, got %v, %v", anon, err)
	}
}

func TestMapSessionService_IsParticipant(t *testing.T) {
	sessionID, userID := uuid.New(), uuid.New()
	found := true
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !found {
				return errRow(pgx.ErrNoRows)
			}
			return rowFromValues(participantRow(uuid.New(), sessionID, userID, models.ParticipantPending)...)
		},
	}

	service := NewMapSessionService(db, nil, MapSessionOptions{})
	ok, err := service.IsParticipant(context.Background(), sessionID, userID)
	if err != nil || !ok {
		t.Fatalf("expected participant, got %v, %v", ok, err)
	}

	found = false
	ok, err = service.IsParticipant(context.Background(), sessionID, userID)
	if err != nil || ok {
		t.Fatalf("expected non-participant, got %v, %v", ok, err)
	}
}
