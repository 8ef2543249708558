package wire

import (
	"bytes"
	"testing"
)

func mustDecodeRecord(t *testing.T, b []byte) Record {
	t.Helper()
	r, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	return r
}

func mustDecodeNotice(t *testing.T, b []byte) Notice {
	t.Helper()
	n, err := DecodeNotice(b)
	if err != nil {
		t.Fatalf("DecodeNotice error: %v", err)
	}
	return n
}

func TestRecordRTEmptyAndNonEmpty(t *testing.T) {
	cases := []Record{
		{StoredAtMilli: 1, TTLMillis: 0, Flags: 0, Payload: nil},
		{StoredAtMilli: 1700000000000, TTLMillis: 3_600_000, Flags: FlagTracked, Payload: []byte("hello")},
		{StoredAtMilli: 42, TTLMillis: 1, Flags: 0, Payload: []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := EncodeRecord(tc)
		got := mustDecodeRecord(t, enc)
		if got.StoredAtMilli != tc.StoredAtMilli || got.TTLMillis != tc.TTLMillis || got.Flags != tc.Flags {
			t.Fatalf("header mismatch: got %+v want %+v", got, tc)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestRecordRejectsTrailingBytes(t *testing.T) {
	enc := EncodeRecord(Record{StoredAtMilli: 7, TTLMillis: 100, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD) // add junk
	if _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestRecordCorruptHeadersAndBounds(t *testing.T) {
	good := EncodeRecord(Record{StoredAtMilli: 1, TTLMillis: 50, Payload: []byte("abc")})

	cases := map[string]func([]byte) []byte{
		"too short":     func(b []byte) []byte { return b[:5] },
		"bad magic":     func(b []byte) []byte { c := clone(b); c[0] = 'X'; return c },
		"bad version":   func(b []byte) []byte { c := clone(b); c[4] = 99; return c },
		"bad kind":      func(b []byte) []byte { c := clone(b); c[5] = kindNotice; return c },
		"zero storedAt": func(b []byte) []byte { c := clone(b); copy(c[7:15], make([]byte, 8)); return c },
		"truncated":     func(b []byte) []byte { return b[:len(b)-1] },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeRecord(mut(good)); err == nil {
				t.Fatalf("expected ErrCorrupt")
			}
		})
	}
}

func TestNoticeRoundTrip(t *testing.T) {
	cases := []Notice{
		{Op: OpSet, Origin: "7f9c0b2e-9a44-4a58-a6cf-2f6b6a1d5f01", Key: "roles:user123"},
		{Op: OpDel, Origin: "", Key: "k"},
	}
	for _, tc := range cases {
		got := mustDecodeNotice(t, EncodeNotice(tc))
		if got != tc {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, tc)
		}
	}
}

func TestNoticeRejectsForeignBytes(t *testing.T) {
	for name, b := range map[string][]byte{
		"empty":        nil,
		"not a frame":  []byte("hello world"),
		"record frame": EncodeRecord(Record{StoredAtMilli: 1, TTLMillis: 1, Payload: []byte("x")}),
		"trailing":     append(EncodeNotice(Notice{Op: OpDel, Key: "k"}), 0x00),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeNotice(b); err == nil {
				t.Fatalf("expected ErrCorrupt")
			}
		})
	}
}

func TestNoticeBadOp(t *testing.T) {
	enc := EncodeNotice(Notice{Op: OpSet, Origin: "o", Key: "k"})
	enc[6] = 99
	if _, err := DecodeNotice(enc); err == nil {
		t.Fatalf("expected ErrCorrupt for unknown op")
	}
}

func TestEncodeNoticePanicsOnEmptyKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty key")
		}
	}()
	EncodeNotice(Notice{Op: OpSet, Key: ""})
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
