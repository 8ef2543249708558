// Package codec defines the value (de)serialization contract for the cache
// and ships ready-made implementations: JSON, Msgpack, CBOR, Protobuf and
// identity codecs for raw bytes and strings. Both cache tiers store the
// encoded payload, so whatever codec is chosen decides the wire shape a
// value has in Redis and in process memory.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
