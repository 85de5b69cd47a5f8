package interceptors

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

const requestIDKey contextKey = "request_id"

// GetRequestIDFromContext returns the request ID set by the request ID interceptor.
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// NewRequestIDInterceptor propagates the caller's request ID header or mints one.
func NewRequestIDInterceptor(header string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(header)
			if id == "" {
				id = uuid.NewString()
			}
			ctx = context.WithValue(ctx, requestIDKey, id)

			resp, err := next(ctx, req)
			if resp != nil {
				resp.Header().Set(header, id)
			}
			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				connectErr.Meta().Set(header, id)
			}
			return resp, err
		}
	}
}
