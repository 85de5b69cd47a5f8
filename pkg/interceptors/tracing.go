package interceptors

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingInterceptor opens a server span per statement RPC.
type TracingInterceptor struct {
	tracer trace.Tracer
}

// NewTracingInterceptor creates a tracing interceptor. A nil tracer uses the
// global provider.
func NewTracingInterceptor(tracer trace.Tracer) *TracingInterceptor {
	if tracer == nil {
		tracer = otel.Tracer("familia/interceptors")
	}
	return &TracingInterceptor{tracer: tracer}
}

// WrapUnary implements connect.Interceptor.
func (i *TracingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if !req.Spec().IsClient {
			ctx = i.start(ctx, req.Spec().Procedure)
		}
		resp, err := next(ctx, req)
		if !req.Spec().IsClient {
			finish(trace.SpanFromContext(ctx), err)
		}
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *TracingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor. The statement service
// has no streaming procedures.
func (i *TracingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func (i *TracingInterceptor) start(ctx context.Context, procedure string) context.Context {
	service, method := splitProcedure(procedure)
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "connect_rpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
	}
	if id, ok := GetRequestIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("familia.request_id", id))
	}
	ctx, _ = i.tracer.Start(ctx, service+"/"+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx
}

func finish(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attribute.String("rpc.connect_rpc.error_code", connect.CodeOf(err).String()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// splitProcedure turns "/familia.v1.StatementService/ImportStatement" into
// its service and method names.
func splitProcedure(procedure string) (service, method string) {
	procedure = strings.TrimPrefix(procedure, "/")
	lastSlash := strings.LastIndex(procedure, "/")
	if lastSlash < 0 {
		return procedure, ""
	}
	return procedure[:lastSlash], procedure[lastSlash+1:]
}
