package adminauth

import "context"

type clientIPContextKey struct{}
type actorContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it for the
// per-IP login throttle and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithActor attaches the username of the administrator performing an administrative
// operation. It is recorded in audit events.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, username)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func actorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
