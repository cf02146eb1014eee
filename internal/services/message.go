package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

var (
	ErrInvalidMessage    = errors.New("message must be between 1 and 2000 characters")
	ErrCannotMessageSelf = errors.New("cannot send a message to yourself")
)

const (
	maxMessageLength      = 2000
	conversationPageLimit = 200
	messageColumns        = `id, sender_id, receiver_id, content, created_at`
)

type MessageService struct {
	db DBConn
}

func NewMessageService(db DBConn) *MessageService {
	return &MessageService{db: db}
}

func (s *MessageService) Send(ctx context.Context, actorID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if actorID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxMessageLength {
		return nil, ErrInvalidMessage
	}
	if actorID == receiverID {
		return nil, ErrCannotMessageSelf
	}

	exists, err := userExists(ctx, s.db, receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	msg := &models.Message{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+messageColumns,
		actorID, receiverID, content,
	).Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return msg, nil
}

// Conversation returns messages between the actor and other in ascending
// order. Without a cursor it returns the newest page. A non-nil after
// returns the oldest page created strictly later, so polling never skips.
func (s *MessageService) Conversation(ctx context.Context, actorID, otherID uuid.UUID, after *time.Time) ([]models.Message, error) {
	messages := []models.Message{}
	if actorID == uuid.Nil {
		return messages, nil
	}

	const between = `((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`
	args := []any{actorID, otherID}
	var query string
	if after != nil {
		query = fmt.Sprintf(`SELECT %s FROM messages
			 WHERE %s AND created_at > $3
			 ORDER BY created_at ASC, id ASC LIMIT %d`,
			messageColumns, between, conversationPageLimit)
		args = append(args, *after)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM (
			 SELECT %s FROM messages
			 WHERE %s
			 ORDER BY created_at DESC, id DESC LIMIT %d
			 ) AS recent
			 ORDER BY created_at ASC, id ASC`,
			messageColumns, messageColumns, between, conversationPageLimit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}
