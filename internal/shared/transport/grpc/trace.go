package grpc

import (
	"context"
	"path"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"PlayerSync/modules/kit/tracex"
)

const (
	mdTraceID = "x-trace-id"
	mdSpanID  = "x-span-id"
)

// serverTraceOptions 给服务端 unary/stream 调用补 trace，span 取方法名（Check / Watch）。
func serverTraceOptions() []gogrpc.ServerOption {
	unary := func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		return handler(fromIncoming(ctx, info.FullMethod), req)
	}
	stream := func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		return handler(srv, &tracedStream{ServerStream: ss, ctx: fromIncoming(ss.Context(), info.FullMethod)})
	}
	return []gogrpc.ServerOption{
		gogrpc.ChainUnaryInterceptor(unary),
		gogrpc.ChainStreamInterceptor(stream),
	}
}

// clientTrace 把调用方 ctx 里的 trace 带到对端。
func clientTrace() gogrpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *gogrpc.ClientConn, invoker gogrpc.UnaryInvoker, opts ...gogrpc.CallOption) error {
		return invoker(toOutgoing(ctx), method, req, reply, cc, opts...)
	}
}

type tracedStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

func toOutgoing(ctx context.Context) context.Context {
	var kv []string
	if id, ok := tracex.TraceIDFrom(ctx); ok {
		kv = append(kv, mdTraceID, id)
	}
	if id, ok := tracex.SpanIDFrom(ctx); ok {
		kv = append(kv, mdSpanID, id)
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func fromIncoming(ctx context.Context, method string) context.Context {
	span := path.Base(method)
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(mdTraceID); len(v) > 0 && v[0] != "" {
		ctx = tracex.WithTraceID(ctx, v[0])
	}
	// 上游给了 span 就沿用，否则用方法名
	if v := md.Get(mdSpanID); len(v) > 0 && v[0] != "" {
		span = v[0]
	}
	return tracex.Ensure(ctx, span)
}
