package logger

import "context"

type requestIDCtxKey struct{}

// WithRequestID stores the HTTP request id in the context so log
// records emitted deeper in the call chain can carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestID returns the request id from the context, or "" when the
// call is not serving an HTTP request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}
