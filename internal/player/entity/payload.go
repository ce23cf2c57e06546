package entity

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Payload 是解码后的玩家数据，取值范围和 protobuf Struct 一致：
// nil、bool、float64、string、[]any、map[string]any。整数写入后读出是 float64。
type Payload map[string]any

// NormalizePayload 把任意 map 规整成 Payload（深拷贝），有不支持的值时返回错误。
func NormalizePayload(in map[string]any) (Payload, error) {
	if len(in) == 0 {
		return Payload{}, nil
	}
	s, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	return Payload(s.AsMap()), nil
}

// NormalizeValue 规整单个值。
func NormalizeValue(v any) (any, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("unsupported payload value %T: %w", v, err)
	}
	return pv.AsInterface(), nil
}

// Clone 深拷贝。Payload 里的值已经规整过，不会失败。
func (p Payload) Clone() Payload {
	out, err := NormalizePayload(p)
	if err != nil {
		panic(fmt.Sprintf("payload holds unnormalized value: %v", err))
	}
	return out
}
