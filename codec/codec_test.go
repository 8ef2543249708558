package codec

import (
	"bytes"
	"strings"
	"testing"
)

type payload struct {
	ID   int      `json:"id" msgpack:"id"`
	Tags []string `json:"tags" msgpack:"tags"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSONCodec[payload]{}
	in := payload{ID: 7, Tags: []string{"a", "b"}}

	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.ID != in.ID || len(out.Tags) != 2 || out.Tags[1] != "b" {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}

	if _, err := c.Decode([]byte("{nope")); err == nil {
		t.Fatal("Decode accepted malformed JSON")
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	c := Msgpack[payload]{}
	in := payload{ID: 42, Tags: []string{"x"}}

	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.ID != in.ID || len(out.Tags) != 1 {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	in := map[string]int{"b": 2, "a": 1, "c": 3}

	b1, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b2, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode second: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatal("deterministic mode produced differing encodings")
	}

	out, err := c.Decode(b1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["b"] != 2 {
		t.Fatalf("round trip = %v, want %v", out, in)
	}
}

func TestIdentityCodecs(t *testing.T) {
	raw := []byte{0x00, 0xFF, 0x10}
	if b, err := (Bytes{}).Encode(raw); err != nil || !bytes.Equal(b, raw) {
		t.Fatalf("Bytes.Encode = (%v, %v)", b, err)
	}
	if s, err := (String{}).Decode([]byte("héllo")); err != nil || s != "héllo" {
		t.Fatalf("String.Decode = (%q, %v)", s, err)
	}
}

type countingCodec struct {
	encodes int
	decodes int
}

func (c *countingCodec) Encode(s string) ([]byte, error) {
	c.encodes++
	return []byte(s), nil
}

func (c *countingCodec) Decode(b []byte) (string, error) {
	c.decodes++
	return string(b), nil
}

func TestLimitCodec(t *testing.T) {
	t.Run("encode cap", func(t *testing.T) {
		c := LimitCodec[string]{Inner: &countingCodec{}, MaxEncode: 4}
		if _, err := c.Encode("ok"); err != nil {
			t.Fatalf("small Encode: %v", err)
		}
		if _, err := c.Encode(strings.Repeat("x", 5)); err == nil {
			t.Fatal("oversized Encode accepted")
		}
	})

	t.Run("decode cap rejects before inner runs", func(t *testing.T) {
		inner := &countingCodec{}
		c := LimitCodec[string]{Inner: inner, MaxDecode: 4}
		if _, err := c.Decode([]byte("12345")); err == nil {
			t.Fatal("oversized Decode accepted")
		}
		if inner.decodes != 0 {
			t.Fatal("inner codec ran on an oversized payload")
		}
		if s, err := c.Decode([]byte("1234")); err != nil || s != "1234" {
			t.Fatalf("Decode = (%q, %v)", s, err)
		}
	})

	t.Run("zero caps disable limiting", func(t *testing.T) {
		c := LimitCodec[string]{Inner: &countingCodec{}}
		big := strings.Repeat("x", 1<<16)
		if _, err := c.Encode(big); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := c.Decode([]byte(big)); err != nil {
			t.Fatalf("Decode: %v", err)
		}
	})
}
