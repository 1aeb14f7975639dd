package logger

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys copied onto log records by ContextHandler.
const (
	// ContextKeyProvider identifies the vendor API ("openai", "elevenlabs", "anthropic").
	ContextKeyProvider contextKey = "provider"

	// ContextKeyModel identifies the vendor model.
	ContextKeyModel contextKey = "model"

	// ContextKeyRequestID identifies one outgoing request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyCommand identifies the CLI subcommand.
	ContextKeyCommand contextKey = "command"
)

var allContextKeys = []contextKey{
	ContextKeyCommand,
	ContextKeyProvider,
	ContextKeyModel,
	ContextKeyRequestID,
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithCommand returns a new context with the CLI subcommand set.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, ContextKeyCommand, command)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ContextKeyRequestID).(string)
	return s
}
