package ports

import "context"

// RateLimiter admits or declines a request for key. A decline is a normal
// result, not an error; err is reserved for backend failures.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type callerKeyCtx struct{}

// WithCallerKey attaches the identifier rate limits are applied to.
func WithCallerKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, callerKeyCtx{}, key)
}

// CallerKey returns the key set by WithCallerKey, if any.
func CallerKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(callerKeyCtx{}).(string)
	return key, ok && key != ""
}
