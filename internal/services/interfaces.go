package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

// UserServiceInterface defines the contract for user operations.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthServiceInterface defines the contract for authentication operations.
type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// FriendServiceInterface defines the relationship resolver used by handlers.
type FriendServiceInterface interface {
	ResolveStatuses(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListFriends(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListPendingReceived(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListPendingSent(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	SendRequest(ctx context.Context, actorID, targetID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
	RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
}

// MapSessionServiceInterface defines the session/participant coordinator.
type MapSessionServiceInterface interface {
	CreateSession(ctx context.Context, actorID uuid.UUID) (*models.MapSession, error)
	JoinSession(ctx context.Context, actorID, sessionID uuid.UUID) (*models.MapParticipant, error)
	ApproveParticipant(ctx context.Context, actorID, sessionID, participantID uuid.UUID) (*models.MapParticipant, error)
	UpdateLocation(ctx context.Context, actorID, sessionID uuid.UUID, lat, lng float64) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (*models.MapSessionDetail, error)
	ListSessions(ctx context.Context, actorID uuid.UUID) ([]models.MapSession, error)
	AddMarker(ctx context.Context, actorID, sessionID uuid.UUID, params models.AddMarkerParams) (*models.MapMarker, error)
	IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

type LocationServiceInterface interface {
	UpdateUserLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64) error
	ListFriendLocations(ctx context.Context, actorID uuid.UUID) ([]models.FriendLocation, error)
}

type MessageServiceInterface interface {
	Send(ctx context.Context, actorID, receiverID uuid.UUID, content string) (*models.Message, error)
	Conversation(ctx context.Context, actorID, otherID uuid.UUID, after *time.Time) ([]models.Message, error)
}

var (
	_ UserServiceInterface       = (*UserService)(nil)
	_ AuthServiceInterface       = (*AuthService)(nil)
	_ FriendServiceInterface     = (*FriendService)(nil)
	_ MapSessionServiceInterface = (*MapSessionService)(nil)
	_ LocationServiceInterface   = (*LocationService)(nil)
	_ MessageServiceInterface    = (*MessageService)(nil)
)
