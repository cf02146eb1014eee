package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
	"github.com/HammerMeetNail/friendhub/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type SendRequestRequest struct {
	ReceiverID string `json:"receiver_id"`
}

type UserListResponse struct {
	Users []models.UserWithStatus `json:"users"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

// Explore lists every other user with their relationship to the caller.
func (h *FriendHandler) Explore(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "resolve statuses", h.friendService.ResolveStatuses)
}

func (h *FriendHandler) Friends(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list friends", h.friendService.ListFriends)
}

func (h *FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list received requests", h.friendService.ListPendingReceived)
}

func (h *FriendHandler) Sent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list sent requests", h.friendService.ListPendingSent)
}

func (h *FriendHandler) list(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, uuid.UUID) ([]models.UserWithStatus, error)) {
	users, err := fetch(r.Context(), actorID(r.Context()))
	if err != nil {
		writeInternalError(w, r, op, err)
		return
	}
	if users == nil {
		users = []models.UserWithStatus{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req SendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receiver ID")
		return
	}

	created, err := h.friendService.SendRequest(r.Context(), actorID(r.Context()), receiverID)
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	if errors.Is(err, services.ErrCannotFriendSelf) {
		writeError(w, http.StatusBadRequest, "Cannot send friend request to yourself")
		return
	}
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeInternalError(w, r, "send friend request", err)
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: created})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "accept friend request", h.friendService.AcceptRequest)
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "reject friend request", h.friendService.RejectRequest)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, uuid.UUID, uuid.UUID) (*models.FriendRequest, error)) {
	requestID, ok := pathUUID(w, r, "id", "request ID")
	if !ok {
		return
	}

	updated, err := apply(r.Context(), actorID(r.Context()), requestID)
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrFriendRequestNotFound):
		writeError(w, http.StatusNotFound, "Friend request not found")
	case errors.Is(err, services.ErrNotRequestReceiver):
		writeError(w, http.StatusForbidden, "Only the receiver can respond to this request")
	case errors.Is(err, services.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "Request is not pending")
	case err != nil:
		writeInternalError(w, r, op, err)
	default:
		writeJSON(w, http.StatusOK, FriendRequestResponse{Request: updated})
	}
}
