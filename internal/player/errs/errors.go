package errs

import "fmt"

type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindInfra      Kind = "infra"
	KindDependency Kind = "dependency"
	KindBusiness   Kind = "business"
	KindCodec      Kind = "codec"
)

type Error struct {
	Op    string         // 发生位置：mongo.GetRecord / coordinator.acquire
	Kind  Kind           // 粗分类
	Meta  map[string]any // 关键参数（player_id, attempt...）
	Cause error          // 根因（必须保留）
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap：统一包装入口
func Wrap(op string, kind Kind, cause error, meta map[string]any) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Cause: cause, Meta: meta}
}

// Backend 把存储/缓存的 I/O 错误包成 BackendUnavailable。
func Backend(op string, playerID string, cause error) error {
	if cause == nil {
		return nil
	}
	return Wrap(op, KindInfra, ErrBackendUnavailable.WithCause(cause).WithData("player_id", playerID),
		map[string]any{"player_id": playerID})
}

// Serialization 把 payload 编解码失败包成 SerializationFault。
func Serialization(op string, playerID string, cause error) error {
	if cause == nil {
		return nil
	}
	return Wrap(op, KindCodec, ErrSerializationFault.WithCause(cause).WithData("player_id", playerID),
		map[string]any{"player_id": playerID})
}
