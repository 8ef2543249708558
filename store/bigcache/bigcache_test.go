package bigcache

import (
	"bytes"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{LifeWindow: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDel(t *testing.T) {
	s := newStore(t)

	if !s.Set("k", []byte{0x01, 0x02}) {
		t.Fatal("Set rejected")
	}
	got, ok := s.Get("k")
	if !ok || !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Fatalf("Get = (%v, %v)", got, ok)
	}

	s.Del("k")
	if _, ok := s.Get("k"); ok {
		t.Fatal("key survived Del")
	}
}

func TestFlushCountsAndResets(t *testing.T) {
	s := newStore(t)

	for _, k := range []string{"a", "b", "c"} {
		s.Set(k, []byte(k))
	}
	if n := s.Len(); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}
	if n := s.Flush(); n != 3 {
		t.Fatalf("Flush = %d, want 3", n)
	}
	if n := s.Len(); n != 0 {
		t.Fatalf("Len after flush = %d, want 0", n)
	}
}

func TestOverwrite(t *testing.T) {
	s := newStore(t)

	s.Set("k", []byte("old"))
	s.Set("k", []byte("new"))
	got, ok := s.Get("k")
	if !ok || string(got) != "new" {
		t.Fatalf("Get = (%q, %v), want new", got, ok)
	}
}
