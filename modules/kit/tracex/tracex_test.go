package tracex

import (
	"context"
	"testing"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-1")
	if got, ok := TraceIDFrom(ctx); !ok || got != "t-1" {
		t.Fatalf("期望 TraceIDFrom round-trip 成功，got=%q ok=%v", got, ok)
	}
}

func TestEnsure_保留已有trace且覆盖span(t *testing.T) {
	ctx := WithTraceID(context.Background(), "keep-me")
	ctx = Ensure(ctx, "flush")
	if got, _ := TraceIDFrom(ctx); got != "keep-me" {
		t.Fatalf("期望保留上游 trace_id, got=%q", got)
	}
	if got, _ := SpanIDFrom(ctx); got != "flush" {
		t.Fatalf("期望 span=flush, got=%q", got)
	}

	fresh := Ensure(context.Background(), "")
	if id, ok := TraceIDFrom(fresh); !ok || len(id) != 32 {
		t.Fatalf("期望生成 32 位 trace_id, got=%q", id)
	}
	if _, ok := SpanIDFrom(fresh); ok {
		t.Fatalf("期望 span 为空时不设置 span_id")
	}
}
