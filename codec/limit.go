package codec

import "fmt"

// LimitCodec wraps another codec with payload size caps.
//
// MaxDecode guards reads: payloads from a shared cache are attacker-shaped
// input, and rejecting oversized ones before Inner runs keeps a poisoned
// entry from ballooning memory. MaxEncode guards writes: a value whose
// encoding exceeds it is refused, which the cache treats as "do not cache"
// rather than an operation failure. Either cap is disabled when <= 0.
type LimitCodec[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner interface {
		Encode(V) ([]byte, error)
		Decode([]byte) (V, error)
	}
	// MaxEncode is the maximum permitted length in bytes of an encoded
	// payload about to be stored.
	MaxEncode int
	// MaxDecode is the maximum permitted length in bytes of an incoming
	// payload handed to Decode.
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxEncode)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
