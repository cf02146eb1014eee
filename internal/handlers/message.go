package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
	"github.com/HammerMeetNail/friendhub/internal/services"
)

type MessageHandler struct {
	messageService services.MessageServiceInterface
}

func NewMessageHandler(messageService services.MessageServiceInterface) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

type SentMessageResponse struct {
	Message *models.Message `json:"message"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receiver ID")
		return
	}

	msg, err := h.messageService.Send(r.Context(), actorID(r.Context()), receiverID, req.Content)
	if writeUnauthorizedIfNeeded(w, err) {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrCannotMessageSelf):
		writeError(w, http.StatusBadRequest, "Cannot send a message to yourself")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case err != nil:
		writeInternalError(w, r, "send message", err)
	default:
		writeJSON(w, http.StatusCreated, SentMessageResponse{Message: msg})
	}
}

// Conversation returns messages with the user in the path, oldest first.
// ?after=<RFC3339> narrows the result to newer messages for polling.
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	otherID, ok := pathUUID(w, r, "userId", "user ID")
	if !ok {
		return
	}

	var after *time.Time
	if raw := r.URL.Query().Get("after"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be an RFC3339 timestamp")
			return
		}
		after = &t
	}

	messages, err := h.messageService.Conversation(r.Context(), actorID(r.Context()), otherID, after)
	if err != nil {
		writeInternalError(w, r, "list conversation", err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}
