package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendRequestStatus is the stored state of a friend request row.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendshipStatus is the actor-relative classification of another user.
type FriendshipStatus string

const (
	FriendshipNone            FriendshipStatus = "none"
	FriendshipPendingSent     FriendshipStatus = "pending_sent"
	FriendshipPendingReceived FriendshipStatus = "pending_received"
	FriendshipAccepted        FriendshipStatus = "accepted"
)

type FriendRequest struct {
	ID         uuid.UUID           `json:"id"`
	SenderID   uuid.UUID           `json:"sender_id"`
	ReceiverID uuid.UUID           `json:"receiver_id"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Connects reports whether the request links a and b in either direction.
func (r FriendRequest) Connects(a, b uuid.UUID) bool {
	return (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
}

// UserWithStatus is one entry of the explore, chat and request lists.
type UserWithStatus struct {
	User      UserSummary      `json:"user"`
	Status    FriendshipStatus `json:"status"`
	RequestID *uuid.UUID       `json:"request_id,omitempty"`
}

// ResolveFriendshipStatus classifies req from the actor's point of view.
// A nil request resolves to none.
func ResolveFriendshipStatus(actorID uuid.UUID, req *FriendRequest) FriendshipStatus {
	if req == nil {
		return FriendshipNone
	}
	switch req.Status {
	case FriendRequestAccepted:
		return FriendshipAccepted
	case FriendRequestPending:
		if req.SenderID == actorID {
			return FriendshipPendingSent
		}
		if req.ReceiverID == actorID {
			return FriendshipPendingReceived
		}
	}
	return FriendshipNone
}

// SelectFriendRequest picks the row that decides the relationship between
// actor and other. Only one row is expected, but sends are not deduplicated:
// an accepted row wins, then the newest pending row, then the newest row.
func SelectFriendRequest(actorID, otherID uuid.UUID, requests []FriendRequest) *FriendRequest {
	var accepted, pending, other *FriendRequest
	for i := range requests {
		r := &requests[i]
		if !r.Connects(actorID, otherID) {
			continue
		}
		switch r.Status {
		case FriendRequestAccepted:
			accepted = newer(accepted, r)
		case FriendRequestPending:
			pending = newer(pending, r)
		default:
			other = newer(other, r)
		}
	}
	switch {
	case accepted != nil:
		return accepted
	case pending != nil:
		return pending
	default:
		return other
	}
}

func newer(current, candidate *FriendRequest) *FriendRequest {
	if current == nil || candidate.CreatedAt.After(current.CreatedAt) {
		return candidate
	}
	return current
}
