package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/live"
	"github.com/HammerMeetNail/friendhub/internal/models"
	"github.com/HammerMeetNail/friendhub/internal/services/places"
)

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(SetUserInContext(r.Context(), user))
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com"}
}

type mockUserService struct {
	CreateFunc     func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

type mockAuthService struct {
	HashPasswordFunc    func(password string) (string, error)
	VerifyPasswordFunc  func(hash, password string) bool
	CreateSessionFunc   func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc   func(ctx context.Context, token string) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "session-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

type mockFriendService struct {
	ResolveStatusesFunc     func(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListFriendsFunc         func(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListPendingReceivedFunc func(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	ListPendingSentFunc     func(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error)
	SendRequestFunc         func(ctx context.Context, actorID, targetID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequestFunc       func(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
	RejectRequestFunc       func(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error)
}

func (m *mockFriendService) ResolveStatuses(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	if m.ResolveStatusesFunc != nil {
		return m.ResolveStatusesFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockFriendService) ListPendingReceived(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	if m.ListPendingReceivedFunc != nil {
		return m.ListPendingReceivedFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockFriendService) ListPendingSent(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	if m.ListPendingSentFunc != nil {
		return m.ListPendingSentFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockFriendService) SendRequest(ctx context.Context, actorID, targetID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, actorID, targetID)
	}
	return nil, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, actorID, requestID)
	}
	return nil, nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, actorID, requestID)
	}
	return nil, nil
}

type mockMapSessionService struct {
	CreateSessionFunc      func(ctx context.Context, actorID uuid.UUID) (*models.MapSession, error)
	JoinSessionFunc        func(ctx context.Context, actorID, sessionID uuid.UUID) (*models.MapParticipant, error)
	ApproveParticipantFunc func(ctx context.Context, actorID, sessionID, participantID uuid.UUID) (*models.MapParticipant, error)
	UpdateLocationFunc     func(ctx context.Context, actorID, sessionID uuid.UUID, lat, lng float64) error
	GetSessionFunc         func(ctx context.Context, sessionID uuid.UUID) (*models.MapSessionDetail, error)
	ListSessionsFunc       func(ctx context.Context, actorID uuid.UUID) ([]models.MapSession, error)
	AddMarkerFunc          func(ctx context.Context, actorID, sessionID uuid.UUID, params models.AddMarkerParams) (*models.MapMarker, error)
	IsParticipantFunc      func(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

func (m *mockMapSessionService) CreateSession(ctx context.Context, actorID uuid.UUID) (*models.MapSession, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockMapSessionService) JoinSession(ctx context.Context, actorID, sessionID uuid.UUID) (*models.MapParticipant, error) {
	if m.JoinSessionFunc != nil {
		return m.JoinSessionFunc(ctx, actorID, sessionID)
	}
	return nil, nil
}

func (m *mockMapSessionService) ApproveParticipant(ctx context.Context, actorID, sessionID, participantID uuid.UUID) (*models.MapParticipant, error) {
	if m.ApproveParticipantFunc != nil {
		return m.ApproveParticipantFunc(ctx, actorID, sessionID, participantID)
	}
	return nil, nil
}

func (m *mockMapSessionService) UpdateLocation(ctx context.Context, actorID, sessionID uuid.UUID, lat, lng float64) error {
	if m.UpdateLocationFunc != nil {
		return m.UpdateLocationFunc(ctx, actorID, sessionID, lat, lng)
	}
	return nil
}

func (m *mockMapSessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.MapSessionDetail, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockMapSessionService) ListSessions(ctx context.Context, actorID uuid.UUID) ([]models.MapSession, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, actorID)
	}
	return nil, nil
}

func (m *mockMapSessionService) AddMarker(ctx context.Context, actorID, sessionID uuid.UUID, params models.AddMarkerParams) (*models.MapMarker, error) {
	if m.AddMarkerFunc != nil {
		return m.AddMarkerFunc(ctx, actorID, sessionID, params)
	}
	return nil, nil
}

func (m *mockMapSessionService) IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	if m.IsParticipantFunc != nil {
		return m.IsParticipantFunc(ctx, sessionID, userID)
	}
	return false, nil
}

type mockLocationService struct {
	UpdateUserLocationFunc  func(ctx context.Context, actorID uuid.UUID, lat, lng float64) error
	ListFriendLocationsFunc func(ctx context.Context, actorID uuid.UUID) ([]models.FriendLocation, error)
}

func (m *mockLocationService) UpdateUserLocation(ctx context.Context, actorID uuid.UUID, lat, lng float64) error {
	if m.UpdateUserLocationFunc != nil {
		return m.UpdateUserLocationFunc(ctx, actorID, lat, lng)
	}
	return nil
}

func (m *mockLocationService) ListFriendLocations(ctx context.Context, actorID uuid.UUID) ([]models.FriendLocation, error) {
	if m.ListFriendLocationsFunc != nil {
		return m.ListFriendLocationsFunc(ctx, actorID)
	}
	return nil, nil
}

type mockMessageService struct {
	SendFunc         func(ctx context.Context, actorID, receiverID uuid.UUID, content string) (*models.Message, error)
	ConversationFunc func(ctx context.Context, actorID, otherID uuid.UUID, after *time.Time) ([]models.Message, error)
}

func (m *mockMessageService) Send(ctx context.Context, actorID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, actorID, receiverID, content)
	}
	return nil, nil
}

func (m *mockMessageService) Conversation(ctx context.Context, actorID, otherID uuid.UUID, after *time.Time) ([]models.Message, error) {
	if m.ConversationFunc != nil {
		return m.ConversationFunc(ctx, actorID, otherID, after)
	}
	return nil, nil
}

type mockPlacesService struct {
	SearchFunc func(ctx context.Context, query string) (places.Result, error)
	NearbyFunc func(ctx context.Context, lat, lng float64, radius int) (places.Result, error)
}

func (m *mockPlacesService) Search(ctx context.Context, query string) (places.Result, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return places.Result{Success: true}, nil
}

func (m *mockPlacesService) Nearby(ctx context.Context, lat, lng float64, radius int) (places.Result, error) {
	if m.NearbyFunc != nil {
		return m.NearbyFunc(ctx, lat, lng, radius)
	}
	return places.Result{Success: true}, nil
}

type mockSubscription struct {
	events chan live.Event
	closed chan struct{}
	once   sync.Once
}

func newMockSubscription() *mockSubscription {
	return &mockSubscription{events: make(chan live.Event, 1), closed: make(chan struct{})}
}

func (m *mockSubscription) Events() <-chan live.Event { return m.events }

func (m *mockSubscription) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

type mockSubscriber struct {
	SubscribeFunc func(ctx context.Context, sessionID uuid.UUID) (live.Subscription, error)
}

func (m *mockSubscriber) Subscribe(ctx context.Context, sessionID uuid.UUID) (live.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, sessionID)
	}
	return newMockSubscription(), nil
}
