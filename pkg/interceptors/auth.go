package interceptors

import (
	"context"
	"errors"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/familia-financas/internal/domain/common"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns a context carrying an authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the authenticated user ID, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// ParseToken validates an HS256 access token and returns its claims.
func ParseToken(secret []byte, token string) (*common.Claims, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	claims := &common.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.OwnerID() == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// NewAuthInterceptor validates bearer tokens on every procedure except the public ones.
// Public procedures still get the user ID attached when a valid token is sent.
func NewAuthInterceptor(secret []byte, publicProcedures ...string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			public := slices.Contains(publicProcedures, req.Spec().Procedure)

			token, hasToken := bearerToken(req.Header().Get("Authorization"))
			if !hasToken {
				if public {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, common.ErrUnauthenticated)
			}

			claims, err := ParseToken(secret, token)
			if err != nil {
				if public {
					return next(ctx, req)
				}
				return nil, connect.NewError(connect.CodeUnauthenticated, common.ErrUnauthenticated)
			}

			return next(WithUserID(ctx, claims.OwnerID()), req)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
