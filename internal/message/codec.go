package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"minhton/internal/domain"
	"minhton/internal/minhtonerr"
)

// writer accumulates a message payload as explicit big-endian fields, the
// same approach the original source's serializer.cpp takes (hand-rolled
// field-by-field encoding, not a self-describing format).
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer { return &writer{} }

func (w *writer) bytes() []byte { return w.buf.Bytes() }

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) bytesField(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *writer) str(s string) { w.bytesField([]byte(s)) }

func (w *writer) uuid(u domain.UUID) { w.buf.Write(u[:]) }

func (w *writer) networkInfo(n domain.NetworkInfo) {
	if n.IsValid() {
		w.boolean(true)
		ip4 := n.Addr.As4()
		w.buf.Write(ip4[:])
		w.u16(n.Port)
	} else {
		w.boolean(false)
	}
}

func (w *writer) position(p domain.LogicalPosition) {
	w.u32(p.Level)
	w.u64(p.Number)
	w.u16(p.Fanout)
}

func (w *writer) nodeInfo(n domain.NodeInfo) {
	w.position(n.Position)
	w.networkInfo(n.Network)
	w.uuid(n.ID)
}

func (w *writer) nodeInfoSlice(ns []domain.NodeInfo) {
	w.u32(uint32(len(ns)))
	for _, n := range ns {
		w.nodeInfo(n)
	}
}

func (w *writer) relationship(r domain.NeighborRelationship) { w.u8(uint8(r)) }

func (w *writer) relationshipSlice(rs []domain.NeighborRelationship) {
	w.u32(uint32(len(rs)))
	for _, r := range rs {
		w.relationship(r)
	}
}

// reader consumes a payload written by writer, failing with
// ErrInvalidMessage (never panicking) on truncation.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("%w: truncated payload, need %d bytes at offset %d, have %d", minhtonerr.ErrInvalidMessage, n, r.pos, len(r.b))
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *reader) bytesField() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) uuid() (domain.UUID, error) {
	if err := r.need(16); err != nil {
		return domain.UUID{}, err
	}
	var u domain.UUID
	copy(u[:], r.b[r.pos:r.pos+16])
	r.pos += 16
	return u, nil
}

func (r *reader) networkInfo() (domain.NetworkInfo, error) {
	valid, err := r.boolean()
	if err != nil {
		return domain.NetworkInfo{}, err
	}
	if !valid {
		return domain.NetworkInfo{}, nil
	}
	if err := r.need(4); err != nil {
		return domain.NetworkInfo{}, err
	}
	var ip4 [4]byte
	copy(ip4[:], r.b[r.pos:r.pos+4])
	r.pos += 4
	port, err := r.u16()
	if err != nil {
		return domain.NetworkInfo{}, err
	}
	return domain.NetworkInfo{Addr: netip.AddrFrom4(ip4), Port: port}, nil
}

func (r *reader) position() (domain.LogicalPosition, error) {
	level, err := r.u32()
	if err != nil {
		return domain.LogicalPosition{}, err
	}
	number, err := r.u64()
	if err != nil {
		return domain.LogicalPosition{}, err
	}
	fanout, err := r.u16()
	if err != nil {
		return domain.LogicalPosition{}, err
	}
	return domain.LogicalPosition{Level: level, Number: number, Fanout: fanout}, nil
}

func (r *reader) nodeInfo() (domain.NodeInfo, error) {
	pos, err := r.position()
	if err != nil {
		return domain.NodeInfo{}, err
	}
	net, err := r.networkInfo()
	if err != nil {
		return domain.NodeInfo{}, err
	}
	id, err := r.uuid()
	if err != nil {
		return domain.NodeInfo{}, err
	}
	return domain.NodeInfo{Position: pos, Network: net, ID: id}, nil
}

func (r *reader) nodeInfoSlice() ([]domain.NodeInfo, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]domain.NodeInfo, n)
	for i := range out {
		out[i], err = r.nodeInfo()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) relationship() (domain.NeighborRelationship, error) {
	v, err := r.u8()
	if err != nil {
		return 0, err
	}
	return domain.NeighborRelationship(v), nil
}

func (r *reader) relationshipSlice() ([]domain.NeighborRelationship, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]domain.NeighborRelationship, n)
	for i := range out {
		out[i], err = r.relationship()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) remaining() []byte {
	return r.b[r.pos:]
}
