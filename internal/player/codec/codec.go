package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"

	"PlayerSync/internal/player/entity"
)

const (
	NameProto     = "proto"
	NameProtoZstd = "proto+zstd"
)

// Codec 负责 Payload 和存储字节之间的转换。
// 同一个 Payload 必须编码出相同的字节，重复落盘才是幂等的。
type Codec interface {
	Name() string
	Encode(p entity.Payload) ([]byte, error)
	Decode(data []byte) (entity.Payload, error)
}

// New 按名字构造，空名字用 proto。
func New(name string) (Codec, error) {
	switch name {
	case "", NameProto:
		return ProtoCodec{}, nil
	case NameProtoZstd:
		return NewZstdCodec(ProtoCodec{})
	default:
		return nil, fmt.Errorf("unknown payload codec %q", name)
	}
}

// ProtoCodec 用 google.protobuf.Struct 做线格式，确定性序列化。
type ProtoCodec struct{}

var deterministic = proto.MarshalOptions{Deterministic: true}

func (ProtoCodec) Name() string { return NameProto }

func (ProtoCodec) Encode(p entity.Payload) ([]byte, error) {
	s, err := structpb.NewStruct(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return deterministic.Marshal(s)
}

// Decode 空字节是新建记录，解成空 Payload。
func (ProtoCodec) Decode(data []byte) (entity.Payload, error) {
	if len(data) == 0 {
		return entity.Payload{}, nil
	}
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	// 合法的 protobuf 但不是 Struct 时字段全进 unknown，解出来是空 map，不能当成功
	if hasUnknown(s.ProtoReflect()) {
		return nil, errors.New("decode payload: not a struct payload")
	}
	return entity.Payload(s.AsMap()), nil
}

func hasUnknown(m protoreflect.Message) bool {
	if len(m.GetUnknown()) > 0 {
		return true
	}
	found := false
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsMap():
			if fd.MapValue().Message() == nil {
				return true
			}
			v.Map().Range(func(_ protoreflect.MapKey, mv protoreflect.Value) bool {
				found = hasUnknown(mv.Message())
				return !found
			})
		case fd.IsList():
			if fd.Message() == nil {
				return true
			}
			l := v.List()
			for i := 0; i < l.Len() && !found; i++ {
				found = hasUnknown(l.Get(i).Message())
			}
		case fd.Message() != nil:
			found = hasUnknown(v.Message())
		}
		return !found
	})
	return found
}

// ZstdCodec 在内层编码外面套一层 zstd。
type ZstdCodec struct {
	inner Codec
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func NewZstdCodec(inner Codec) (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &ZstdCodec{inner: inner, enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Name() string { return c.inner.Name() + "+zstd" }

func (c *ZstdCodec) Encode(p entity.Payload) ([]byte, error) {
	raw, err := c.inner.Encode(p)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *ZstdCodec) Decode(data []byte) (entity.Payload, error) {
	if len(data) == 0 {
		return entity.Payload{}, nil
	}
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode payload: %w", err)
	}
	return c.inner.Decode(raw)
}
