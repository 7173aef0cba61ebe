package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// automatically added to log records by ContextHandler.
const (
	// ContextKeySessionID identifies the active training session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyDeviceID identifies the edge device producing telemetry.
	ContextKeyDeviceID contextKey = "device_id"

	// ContextKeyUserID identifies the user whose telemetry stream is consumed.
	ContextKeyUserID contextKey = "user_id"

	// ContextKeyConnectionID identifies one logical transport connection.
	ContextKeyConnectionID contextKey = "connection_id"

	// ContextKeyEnvironment identifies the deployment environment.
	ContextKeyEnvironment contextKey = "environment"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyDeviceID,
	ContextKeyUserID,
	ContextKeyConnectionID,
	ContextKeyEnvironment,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithDeviceID returns a new context with the device ID set.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceID, deviceID)
}

// WithUserID returns a new context with the user ID set.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// WithConnectionID returns a new context with the connection ID set.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ContextKeyConnectionID, connectionID)
}

// WithEnvironment returns a new context with the environment set.
func WithEnvironment(ctx context.Context, environment string) context.Context {
	return context.WithValue(ctx, ContextKeyEnvironment, environment)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID    string
	DeviceID     string
	UserID       string
	ConnectionID string
	Environment  string
}

// WithLoggingContext sets every non-empty field of fields on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.DeviceID != "" {
		ctx = WithDeviceID(ctx, fields.DeviceID)
	}
	if fields.UserID != "" {
		ctx = WithUserID(ctx, fields.UserID)
	}
	if fields.ConnectionID != "" {
		ctx = WithConnectionID(ctx, fields.ConnectionID)
	}
	if fields.Environment != "" {
		ctx = WithEnvironment(ctx, fields.Environment)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	var fields LoggingFields
	fields.SessionID, _ = ctx.Value(ContextKeySessionID).(string)
	fields.DeviceID, _ = ctx.Value(ContextKeyDeviceID).(string)
	fields.UserID, _ = ctx.Value(ContextKeyUserID).(string)
	fields.ConnectionID, _ = ctx.Value(ContextKeyConnectionID).(string)
	fields.Environment, _ = ctx.Value(ContextKeyEnvironment).(string)
	return fields
}
