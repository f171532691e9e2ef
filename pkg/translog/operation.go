package translog

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// OpKind tags the union spec.md §3 describes for TranslogOperation.
type OpKind byte

const (
	OpIndex OpKind = iota + 1
	OpDelete
	OpNoOp
)

// Operation is the tagged union Meridian appends to a shard's translog.
// Fields not relevant to Kind are left zero; Source is only meaningful
// for OpIndex.
type Operation struct {
	Kind    OpKind
	UID     string
	Source  []byte
	Version int64
}

// IndexOp builds an Index operation.
func IndexOp(uid string, source []byte, version int64) Operation {
	return Operation{Kind: OpIndex, UID: uid, Source: source, Version: version}
}

// DeleteOp builds a Delete operation.
func DeleteOp(uid string, version int64) Operation {
	return Operation{Kind: OpDelete, UID: uid, Version: version}
}

// NoOpOp builds a NoOp operation, used to tombstone a sequence number a
// replica rejected as stale (spec.md §5: "left as a tombstone").
func NoOpOp() Operation {
	return Operation{Kind: OpNoOp}
}

// encode serializes an Operation to its on-disk form. The format is
// local-only (translog entries are explicitly not cross-version per
// spec.md §4.6) so a flat, hand-rolled layout is sufficient: kind byte,
// version int64, uid (length-prefixed), source (length-prefixed).
func (op Operation) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(op.Kind))
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(op.Version))
	buf.Write(v[:])
	writeLenPrefixed(&buf, []byte(op.UID))
	writeLenPrefixed(&buf, op.Source)
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

// decodeOperation is the inverse of encode.
func decodeOperation(data []byte) (Operation, error) {
	if len(data) < 1+8+4 {
		return Operation{}, fmt.Errorf("translog: record too short (%d bytes)", len(data))
	}
	kind := OpKind(data[0])
	version := int64(binary.BigEndian.Uint64(data[1:9]))
	rest := data[9:]

	uid, rest, err := readLenPrefixed(rest)
	if err != nil {
		return Operation{}, err
	}
	source, _, err := readLenPrefixed(rest)
	if err != nil {
		return Operation{}, err
	}
	return Operation{Kind: kind, UID: string(uid), Source: source, Version: version}, nil
}

func readLenPrefixed(b []byte) (value, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("translog: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, fmt.Errorf("translog: truncated record body")
	}
	if n == 0 {
		return nil, b, nil
	}
	return b[:n], b[n:], nil
}
