package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes generated proto messages. Decode needs a fresh message
// to unmarshal into, and proto.Message is only satisfied by pointer types
// whose zero value is a nil pointer, so the codec carries a constructor
// instead of relying on new(T).
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

// NewProtobuf builds the codec around a message constructor, e.g.
// NewProtobuf(func() *pb.User { return &pb.User{} }).
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
