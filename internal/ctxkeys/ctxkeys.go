// Package ctxkeys carries per-delivery metadata through context so
// transports can read it without widening the Transport interface.
package ctxkeys

import "context"

type contextKey string

const (
	messageIDKey   contextKey = "message_id"
	targetAgentKey contextKey = "target_agent"
	coordModeKey   contextKey = "coordination_mode"
)

// WithMessageID stores the message ID being delivered.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey, id)
}

// MessageID returns the message ID being delivered.
func MessageID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(messageIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithTargetAgent stores the agent the delivery is addressed to.
func WithTargetAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, targetAgentKey, agentID)
}

// TargetAgent returns the agent the delivery is addressed to.
func TargetAgent(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(targetAgentKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithCoordinationMode stores the coordination mode driving the delivery.
func WithCoordinationMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, coordModeKey, mode)
}

// CoordinationMode returns the coordination mode driving the delivery.
func CoordinationMode(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(coordModeKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
