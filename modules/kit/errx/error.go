package errx

import (
	"errors"
	"maps"
	"runtime"
	"strings"
)

// Code 是错误码，跨进程、跨日志稳定。
type Code string

// Error 是不可变的错误值：WithData/WithCause 都返回新副本，包级哨兵可以放心派生。
//
// 业务错误（NewBiz）是可预期的拒绝，不带栈；系统错误（NewSys）第一次挂 cause 时
// 捕获一次调用栈，链上已经有栈就不再捕获。
type Error struct {
	code  Code
	msg   string
	sys   bool
	data  map[string]any
	cause error
	stack []uintptr
}

func NewBiz(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

func NewSys(code Code, msg string) *Error {
	return &Error{code: code, msg: msg, sys: true}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.code))
	if e.msg != "" {
		b.WriteString(": ")
		b.WriteString(e.msg)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 只比较错误码：errors.Is(err, errs.ErrDataUnavailable) 不关心 data 和 cause。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) CodeText() string { return string(e.Code()) }

func (e *Error) Msg() string {
	if e == nil {
		return ""
	}
	return e.msg
}

func (e *Error) IsSys() bool { return e != nil && e.sys }

// Data 返回拷贝。
func (e *Error) Data() map[string]any {
	if e == nil {
		return nil
	}
	return maps.Clone(e.data)
}

// Reason 是 data["reason"]，access 日志和业务日志用它做聚合维度。
func (e *Error) Reason() string {
	if e == nil {
		return ""
	}
	s, _ := e.data["reason"].(string)
	return s
}

func (e *Error) Stack() []uintptr {
	if e == nil {
		return nil
	}
	return append([]uintptr(nil), e.stack...)
}

func (e *Error) WithData(key string, value any) *Error {
	next := e.clone()
	if next.data == nil {
		next.data = make(map[string]any, 1)
	}
	next.data[key] = value
	return next
}

func (e *Error) WithCause(cause error) *Error {
	next := e.clone()
	next.cause = cause
	if next.sys && cause != nil && len(next.stack) == 0 && !stackInChain(cause) {
		next.stack = callers(3)
	}
	return next
}

func (e *Error) clone() *Error {
	next := *e
	next.data = maps.Clone(e.data)
	next.stack = append([]uintptr(nil), e.stack...)
	return &next
}

// CodeOf 取错误链上第一个 *Error 的错误码，没有则返回空。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

// IsSys 链上第一个 *Error 是系统错误时为 true；链上没有 *Error 的普通错误也按系统错误算。
func IsSys(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.sys
	}
	return true
}

func callers(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip, pcs)
	return pcs[:n]
}

func stackInChain(err error) bool {
	for depth := 0; err != nil && depth < 32; depth++ {
		if sp, ok := err.(interface{ Stack() []uintptr }); ok && len(sp.Stack()) > 0 {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
