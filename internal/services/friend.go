package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

var (
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrCannotFriendSelf      = errors.New("cannot send friend request to yourself")
	ErrRequestNotPending     = errors.New("friend request is not pending")
	ErrNotRequestReceiver    = errors.New("only the receiver can accept or reject")
)

const friendRequestColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

type FriendService struct {
	db DBConn
}

func NewFriendService(db DBConn) *FriendService {
	return &FriendService{db: db}
}

// ResolveStatuses classifies every user other than the actor. The result is
// derived only from the current request rows.
func (s *FriendService) ResolveStatuses(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	if actorID == uuid.Nil {
		return []models.UserWithStatus{}, nil
	}

	users, err := s.listOtherUsers(ctx, actorID)
	if err != nil {
		return nil, err
	}
	requests, err := s.listRequestsFor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	results := make([]models.UserWithStatus, 0, len(users))
	for _, u := range users {
		req := models.SelectFriendRequest(actorID, u.ID, requests)
		entry := models.UserWithStatus{
			User:   u,
			Status: models.ResolveFriendshipStatus(actorID, req),
		}
		if req != nil && entry.Status != models.FriendshipNone {
			id := req.ID
			entry.RequestID = &id
		}
		results = append(results, entry)
	}
	return results, nil
}

func (s *FriendService) ListFriends(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	return s.filtered(ctx, actorID, models.FriendshipAccepted)
}

func (s *FriendService) ListPendingReceived(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	return s.filtered(ctx, actorID, models.FriendshipPendingReceived)
}

func (s *FriendService) ListPendingSent(ctx context.Context, actorID uuid.UUID) ([]models.UserWithStatus, error) {
	return s.filtered(ctx, actorID, models.FriendshipPendingSent)
}

func (s *FriendService) filtered(ctx context.Context, actorID uuid.UUID, status models.FriendshipStatus) ([]models.UserWithStatus, error) {
	all, err := s.ResolveStatuses(ctx, actorID)
	if err != nil {
		return nil, err
	}
	out := []models.UserWithStatus{}
	for _, entry := range all {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out, nil
}

// SendRequest inserts a new pending request. Repeated sends are not
// deduplicated; each call adds a row.
func (s *FriendService) SendRequest(ctx context.Context, actorID, targetID uuid.UUID) (*models.FriendRequest, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	if actorID == targetID {
		return nil, ErrCannotFriendSelf
	}

	exists, err := userExists(ctx, s.db, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	req, err := scanFriendRequest(s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING `+friendRequestColumns,
		actorID, targetID,
	))
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}
	return req, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	return s.respond(ctx, actorID, requestID, models.FriendRequestAccepted)
}

func (s *FriendService) RejectRequest(ctx context.Context, actorID, requestID uuid.UUID) (*models.FriendRequest, error) {
	return s.respond(ctx, actorID, requestID, models.FriendRequestRejected)
}

// respond reads and authorizes the request before updating it. The update
// repeats the receiver and pending predicates so a concurrent change leaves
// the row untouched.
func (s *FriendService) respond(ctx context.Context, actorID, requestID uuid.UUID, status models.FriendRequestStatus) (*models.FriendRequest, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	req, err := s.getByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actorID {
		return nil, ErrNotRequestReceiver
	}
	if req.Status != models.FriendRequestPending {
		return nil, ErrRequestNotPending
	}

	updated, err := scanFriendRequest(s.db.QueryRow(ctx,
		`UPDATE friend_requests SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND receiver_id = $2 AND status = 'pending'
		 RETURNING `+friendRequestColumns,
		requestID, actorID, status,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("updating friend request: %w", err)
	}
	return updated, nil
}

func (s *FriendService) getByID(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := scanFriendRequest(s.db.QueryRow(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = $1`,
		requestID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return req, nil
}

func (s *FriendService) listOtherUsers(ctx context.Context, actorID uuid.UUID) ([]models.UserSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, image FROM users WHERE id != $1 ORDER BY LOWER(name), id`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Image); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func (s *FriendService) listRequestsFor(ctx context.Context, actorID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY created_at`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend requests: %w", err)
	}
	return requests, nil
}

func scanFriendRequest(row Row) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	if err := row.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	return req, nil
}
