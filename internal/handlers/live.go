package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/friendhub/internal/live"
	"github.com/HammerMeetNail/friendhub/internal/logging"
)

type participantChecker interface {
	IsParticipant(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
}

// LiveHandler upgrades participants of a map session to a websocket that
// carries change notifications for that session.
type LiveHandler struct {
	sessions   participantChecker
	subscriber live.Subscriber
	upgrader   *websocket.Upgrader
}

func NewLiveHandler(sessions participantChecker, subscriber live.Subscriber, upgrader *websocket.Upgrader) *LiveHandler {
	return &LiveHandler{sessions: sessions, subscriber: subscriber, upgrader: upgrader}
}

func (h *LiveHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sessionID, ok := pathUUID(w, r, "id", "session ID")
	if !ok {
		return
	}

	member, err := h.sessions.IsParticipant(r.Context(), sessionID, user.ID)
	if err != nil {
		writeInternalError(w, r, "check participant", err)
		return
	}
	if !member {
		writeError(w, http.StatusForbidden, "Join the session first")
		return
	}

	// The subscription outlives the request context once the connection is
	// hijacked, so it is bound to its own context and closed by Stream.
	sub, err := h.subscriber.Subscribe(context.WithoutCancel(r.Context()), sessionID)
	if err != nil {
		writeInternalError(w, r, "subscribe", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		_ = sub.Close()
		logging.Debug("Websocket upgrade failed", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
		return
	}

	logging.Debug("Live feed connected", map[string]interface{}{
		"session_id": sessionID.String(),
		"user_id":    user.ID.String(),
	})
	live.Stream(conn, sub)
}
