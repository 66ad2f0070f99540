// Package requestctx provides request-scoped values (e.g. the API client id) set by middleware.
package requestctx

import "context"

type contextKey struct{}

var clientIDKey = &contextKey{}

// SetClientID stores the authenticated client id in the context.
func SetClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// ClientID returns the client id from context, or "" if not set.
func ClientID(ctx context.Context) string {
	v, _ := ctx.Value(clientIDKey).(string)
	return v
}
