package errx

import (
	"errors"
	"fmt"
	"testing"
)

var (
	errUnavailable = NewSys("SERVICE_UNAVAILABLE", "服务不可用")
	errConflict    = NewBiz("RESOURCE_CONFLICT", "资源被占用")
)

func TestError_Is_只按code比较语义(t *testing.T) {
	e1 := NewBiz("BIZ_X", "x").WithData("k", "v").WithCause(errors.New("cause1"))
	e2 := NewBiz("BIZ_X", "x2").WithData("k2", "v2").WithCause(errors.New("cause2"))
	if !errors.Is(e1, e2) {
		t.Fatalf("期望 errors.Is(e1, e2)==true，e1=%v e2=%v", e1, e2)
	}
}

func TestError_业务错误不捕获栈_但保留cause链(t *testing.T) {
	cause := errors.New("record locked")
	err := errConflict.WithCause(cause)
	if got := err.Stack(); got != nil {
		t.Fatalf("期望业务错误不捕获栈，got=%v", got)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("期望 cause 链不丢，err=%v", err)
	}
}

func TestError_系统错误捕获一次栈_且不重复捕获(t *testing.T) {
	cause := errors.New("io timeout")
	sys := NewSys("SYS_DB_UNAVAILABLE", "存储不可用").WithCause(cause)
	if got := sys.Stack(); len(got) == 0 {
		t.Fatalf("期望系统错误捕获栈，got=%v", got)
	}

	sys2 := NewSys("SYS_SYNC_ERROR", "同步异常").WithCause(sys)
	if got := sys2.Stack(); got != nil {
		t.Fatalf("期望上层系统错误不重复捕获栈，got=%v", got)
	}
}

func TestError_派生不污染哨兵(t *testing.T) {
	base := NewSys("SYS_X", "x")
	derived := base.WithData("player_id", "p1").WithData("reason", "locked")
	if base.Data() != nil {
		t.Fatalf("期望哨兵 data 不变, got=%v", base.Data())
	}
	if derived.Reason() != "locked" || derived.Data()["player_id"] != "p1" {
		t.Fatalf("派生错误的 data 不符: %v", derived.Data())
	}
	d := derived.Data()
	d["player_id"] = "mutated"
	if derived.Data()["player_id"] != "p1" {
		t.Fatalf("期望 Data 返回拷贝")
	}
}

func TestError_Error文本(t *testing.T) {
	cases := map[string]*Error{
		"X":             NewBiz("X", ""),
		"X: m":          NewBiz("X", "m"),
		"X: m: io fail": NewSys("X", "m").WithCause(errors.New("io fail")),
	}
	for want, err := range cases {
		if got := err.Error(); got != want {
			t.Fatalf("期望 %q, got=%q", want, got)
		}
	}
}

func TestCodeOf_穿透fmt包装(t *testing.T) {
	err := fmt.Errorf("flush player p1: %w", errUnavailable.WithCause(errors.New("conn reset")))
	if got := CodeOf(err); got != errUnavailable.Code() {
		t.Fatalf("期望 CodeOf 取到 %s, got=%s", errUnavailable.Code(), got)
	}
	if !IsSys(err) {
		t.Fatalf("期望 SERVICE_UNAVAILABLE 被识别为系统错误")
	}
	if IsSys(errConflict) {
		t.Fatalf("期望 RESOURCE_CONFLICT 被识别为业务错误")
	}
	if !IsSys(errors.New("plain")) {
		t.Fatalf("期望没有错误码的普通错误按系统错误处理")
	}
	if CodeOf(nil) != "" {
		t.Fatalf("期望 nil 错误没有错误码")
	}
}
