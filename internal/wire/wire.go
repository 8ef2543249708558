package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindRecord byte = 1
	kindNotice byte = 2

	// FlagTracked marks a record that was populated while the invalidation
	// subscription was live; such entries are kept coherent by push eviction
	// in addition to TTL.
	FlagTracked byte = 1 << 0

	maxOriginLen = 128
)

var (
	ErrCorrupt = errors.New("nearcache: corrupt frame")
	magic4     = [...]byte{'N', 'E', 'A', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record is the local-tier entry frame. Timestamps and TTLs travel as raw
// milliseconds; callers convert to time.Time/time.Duration at the edges.
type Record struct {
	StoredAtMilli int64 // unix milli of the populate
	TTLMillis     int64 // logical lifetime; expiry = StoredAtMilli + TTLMillis
	Flags         byte
	Payload       []byte
}

// Record: magic(4) | ver(1) | kind(1=record) | flags(1) | storedAt(u64 be) | ttlMs(u64 be) | vlen(u32 be) | payload(vlen)
func EncodeRecord(r Record) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8 + 8 + 4 + len(r.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRecord)
	buf.WriteByte(r.Flags)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(r.StoredAtMilli))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(r.TTLMillis))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])

	buf.Write(r.Payload)
	return buf.Bytes()
}

func DecodeRecord(b []byte) (Record, error) {
	const hdr = 4 + 1 + 1 + 1 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindRecord {
		return Record{}, ErrCorrupt
	}

	r := Record{Flags: b[6]}
	off := 7

	r.StoredAtMilli = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	r.TTLMillis = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	if r.StoredAtMilli <= 0 || r.TTLMillis < 0 {
		return Record{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact length; reject trailing bytes
		return Record{}, ErrCorrupt
	}

	r.Payload = b[off : off+vlen]
	return r, nil
}

// Op identifies the remote mutation that produced a notice.
type Op byte

const (
	OpSet Op = 1
	OpDel Op = 2
)

// Notice is the invalidation message published alongside every remote
// mutation. Origin is the writer's instance ID so a subscriber can tell its
// own set notices apart from foreign ones.
type Notice struct {
	Op     Op
	Origin string
	Key    string
}

// Notice: magic(4) | ver(1) | kind(2=notice) | op(1) | olen(u16 be) | origin(olen) | klen(u16 be) | key(klen)
func EncodeNotice(n Notice) []byte {
	if n.Op != OpSet && n.Op != OpDel {
		panic("nearcache: invalid notice op")
	}
	if l := len(n.Key); l == 0 || l > 0xFFFF {
		panic("nearcache: invalid key length in notice")
	}
	if len(n.Origin) > maxOriginLen {
		panic("nearcache: origin too long")
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 2 + len(n.Origin) + 2 + len(n.Key))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindNotice)
	buf.WriteByte(byte(n.Op))

	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(n.Origin)))
	buf.Write(u2[:])
	buf.WriteString(n.Origin)

	binary.BigEndian.PutUint16(u2[:], uint16(len(n.Key)))
	buf.Write(u2[:])
	buf.WriteString(n.Key)

	return buf.Bytes()
}

func DecodeNotice(b []byte) (Notice, error) {
	const hdr = 4 + 1 + 1 + 1 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindNotice {
		return Notice{}, ErrCorrupt
	}

	op := Op(b[6])
	if op != OpSet && op != OpDel {
		return Notice{}, ErrCorrupt
	}

	off := 7

	olen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if olen > maxOriginLen || olen > len(b)-off {
		return Notice{}, ErrCorrupt
	}
	origin := b[off : off+olen]
	off += olen

	if off+2 > len(b) {
		return Notice{}, ErrCorrupt
	}
	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen <= 0 || klen != len(b)-off { // exact length; reject trailing bytes
		return Notice{}, ErrCorrupt
	}

	return Notice{
		Op:     op,
		Origin: string(origin),
		Key:    string(b[off : off+klen]),
	}, nil
}
