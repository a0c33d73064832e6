package appctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const connectionIDKey ctxKey = "connectionID"

// WithConnectionID добавляет id websocket соединения в контекст
func WithConnectionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionID извлекает id соединения из контекста
func ConnectionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(connectionIDKey).(uuid.UUID)
	return id, ok
}
