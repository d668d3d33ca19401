package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxEmail
	ctxRole
)

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, userID, email, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxUserID)
}

// Email may legitimately be empty; callers should fall back to submitted contact details.
func Email(ctx context.Context) string {
	s, _ := stringValue(ctx, ctxEmail)
	return s
}

func Role(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxRole)
}

func stringValue(ctx context.Context, k ctxKey) (string, error) {
	if s, ok := ctx.Value(k).(string); ok && s != "" {
		return s, nil
	}
	return "", ErrNoIdentity
}
