package interceptors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/familia-financas/internal/domain/common"
)

const (
	pingProcedure   = "/test.v1.PingService/Ping"
	publicProcedure = "/test.v1.PingService/Public"
)

type ping struct {
	Msg string `json:"msg"`
}

type testCodec struct{}

func (testCodec) Name() string { return "json" }

func (testCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (testCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

func echoUser(ctx context.Context, _ *connect.Request[ping]) (*connect.Response[ping], error) {
	userID, _ := GetUserIDFromContext(ctx)
	return connect.NewResponse(&ping{Msg: userID}), nil
}

func newTestClients(t *testing.T, fn func(context.Context, *connect.Request[ping]) (*connect.Response[ping], error), chain ...connect.Interceptor) (private, public *connect.Client[ping, ping]) {
	t.Helper()
	opts := []connect.HandlerOption{connect.WithCodec(testCodec{}), connect.WithInterceptors(chain...)}
	mux := http.NewServeMux()
	mux.Handle(pingProcedure, connect.NewUnaryHandler(pingProcedure, fn, opts...))
	mux.Handle(publicProcedure, connect.NewUnaryHandler(publicProcedure, fn, opts...))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	private = connect.NewClient[ping, ping](srv.Client(), srv.URL+pingProcedure, connect.WithCodec(testCodec{}))
	public = connect.NewClient[ping, ping](srv.Client(), srv.URL+publicProcedure, connect.WithCodec(testCodec{}))
	return private, public
}

func signToken(t *testing.T, secret []byte, claims *common.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAuthInterceptor(t *testing.T) {
	secret := []byte("test-secret")
	private, public := newTestClients(t, echoUser, NewAuthInterceptor(secret, publicProcedure))
	ctx := context.Background()

	valid := signToken(t, secret, &common.Claims{
		UserID:           "user-123",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := private.CallUnary(ctx, connect.NewRequest(&ping{}))
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("valid token", func(t *testing.T) {
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+valid)
		resp, err := private.CallUnary(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "user-123", resp.Msg.Msg)
	})

	t.Run("subject claim", func(t *testing.T) {
		token := signToken(t, secret, &common.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-456"}})
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+token)
		resp, err := private.CallUnary(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "user-456", resp.Msg.Msg)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+signToken(t, []byte("other"), &common.Claims{UserID: "x"}))
		_, err := private.CallUnary(ctx, req)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, secret, &common.Claims{
			UserID:           "user-123",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		})
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+token)
		_, err := private.CallUnary(ctx, req)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("public without token", func(t *testing.T) {
		resp, err := public.CallUnary(ctx, connect.NewRequest(&ping{}))
		require.NoError(t, err)
		assert.Empty(t, resp.Msg.Msg)
	})

	t.Run("public with token", func(t *testing.T) {
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+valid)
		resp, err := public.CallUnary(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "user-123", resp.Msg.Msg)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequestIDInterceptor(t *testing.T) {
	var seen string
	fn := func(ctx context.Context, _ *connect.Request[ping]) (*connect.Response[ping], error) {
		seen, _ = GetRequestIDFromContext(ctx)
		return connect.NewResponse(&ping{}), nil
	}
	private, _ := newTestClients(t, fn, NewRequestIDInterceptor("X-Request-ID"))

	resp, err := private.CallUnary(context.Background(), connect.NewRequest(&ping{}))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, resp.Header().Get("X-Request-ID"))

	req := connect.NewRequest(&ping{})
	req.Header().Set("X-Request-ID", "req-42")
	resp, err = private.CallUnary(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", resp.Header().Get("X-Request-ID"))
}

func TestRecoveryInterceptor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fn := func(context.Context, *connect.Request[ping]) (*connect.Response[ping], error) {
		panic("boom")
	}
	private, _ := newTestClients(t, fn, NewRecoveryInterceptor(logger), NewLoggingInterceptor(logger))

	_, err := private.CallUnary(context.Background(), connect.NewRequest(&ping{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
}

func TestRateLimitInterceptor(t *testing.T) {
	private, _ := newTestClients(t, echoUser, NewRateLimitInterceptor(rate.NewLimiter(0, 1)))
	ctx := context.Background()

	_, err := private.CallUnary(ctx, connect.NewRequest(&ping{}))
	require.NoError(t, err)

	_, err = private.CallUnary(ctx, connect.NewRequest(&ping{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))
}

func TestSplitProcedure(t *testing.T) {
	tests := []struct {
		in, service, method string
	}{
		{"", "", ""},
		{"nothing", "nothing", ""},
		{"/familia.v1.StatementService/ExtractStatement", "familia.v1.StatementService", "ExtractStatement"},
	}
	for _, tt := range tests {
		service, method := splitProcedure(tt.in)
		if service != tt.service || method != tt.method {
			t.Errorf("splitProcedure(%q) = (%q, %q), want (%q, %q)", tt.in, service, method, tt.service, tt.method)
		}
	}
}

func TestTracingInterceptor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	fn := func(_ context.Context, req *connect.Request[ping]) (*connect.Response[ping], error) {
		if req.Msg.Msg == "fail" {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("bad input"))
		}
		return connect.NewResponse(&ping{}), nil
	}
	private, _ := newTestClients(t, fn,
		NewRequestIDInterceptor("X-Request-ID"),
		NewTracingInterceptor(provider.Tracer("test")),
	)

	req := connect.NewRequest(&ping{})
	req.Header().Set("X-Request-ID", "req-7")
	_, err := private.CallUnary(context.Background(), req)
	require.NoError(t, err)

	_, err = private.CallUnary(context.Background(), connect.NewRequest(&ping{Msg: "fail"}))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "test.v1.PingService/Ping", ok.Name())
	assert.Equal(t, otelcodes.Ok, ok.Status().Code)
	attrs := spanAttributes(ok.Attributes())
	assert.Equal(t, "test.v1.PingService", attrs["rpc.service"])
	assert.Equal(t, "Ping", attrs["rpc.method"])
	assert.Equal(t, "req-7", attrs["familia.request_id"])

	failed := spans[1]
	assert.Equal(t, otelcodes.Error, failed.Status().Code)
	assert.Equal(t, "invalid_argument", spanAttributes(failed.Attributes())["rpc.connect_rpc.error_code"])
}

func spanAttributes(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
