package telemetry

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const turnKey ctxKey = iota

// NewTurnID returns a fresh identifier for one completion round.
func NewTurnID() string {
	return "turn-" + uuid.NewString()
}

// WithTurnID tags ctx with the round identifier used by Emit callers and
// PersistPayload. A nil ctx is treated as context.Background().
func WithTurnID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, turnKey, id)
}

func TurnIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(turnKey).(string)
	return id, id != ""
}
