package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendhub/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// actorID is the signed-in user's id, or uuid.Nil for anonymous requests.
// Services treat uuid.Nil as "no principal".
func actorID(ctx context.Context) uuid.UUID {
	if user := GetUserFromContext(ctx); user != nil {
		return user.ID
	}
	return uuid.Nil
}
