// Package serviceauth carries the authenticated caller identity (a user ID
// and/or a calling service ID) through a request's context, as populated by
// upstream authentication middleware. Handlers read it via GetUserID /
// GetServiceID instead of trusting client-supplied headers directly.
package serviceauth

import "context"

// Header names used by upstream authentication middleware to forward
// identity when it cannot be carried via context (e.g. across a process
// boundary).
const (
	UserIDHeader    = "X-User-ID"
	ServiceIDHeader = "X-Service-ID"
)

type contextKey int

const (
	userIDKey contextKey = iota
	serviceIDKey
)

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the authenticated user ID carried on ctx, if any.
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// WithServiceID returns a context carrying the authenticated calling
// service's ID.
func WithServiceID(ctx context.Context, serviceID string) context.Context {
	return context.WithValue(ctx, serviceIDKey, serviceID)
}

// GetServiceID returns the authenticated calling service ID carried on ctx,
// if any.
func GetServiceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(serviceIDKey).(string)
	return v
}
