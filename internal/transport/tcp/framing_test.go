package tcp

import (
	"bytes"
	"errors"
	"testing"

	"minhton/internal/minhtonerr"
)

func TestFrameMessage(t *testing.T) {
	framed := FrameMessage([]byte("ABCDEF"))
	if len(framed) != 10 {
		t.Fatalf("len = %d, want 10", len(framed))
	}
	if !bytes.Equal(framed[4:], []byte("ABCDEF")) {
		t.Fatalf("payload = %q, want ABCDEF", framed[4:])
	}
	if framed[0] != 0 || framed[1] != 0 || framed[2] != 0 || framed[3] != 6 {
		t.Fatalf("length prefix = %v, want [0 0 0 6]", framed[:4])
	}
}

func TestFrameEmptyMessage(t *testing.T) {
	framed := FrameMessage(nil)
	if len(framed) != 4 {
		t.Fatalf("len = %d, want 4", len(framed))
	}
}

func TestProcessFullMessages(t *testing.T) {
	m := NewFramingManager()
	if m.HasPackets() {
		t.Fatal("expected no packets yet")
	}

	a := []byte("ABCDEF")
	b := []byte("XYZ")

	if err := m.ProcessNewData(FrameMessage(a)); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	if !m.HasPackets() {
		t.Fatal("expected a packet")
	}
	got, ok := m.NextPacket()
	if !ok || !bytes.Equal(got, a) {
		t.Fatalf("NextPacket = %q, %v; want %q, true", got, ok, a)
	}
	if m.HasPackets() {
		t.Fatal("expected queue drained")
	}

	if err := m.ProcessNewData(FrameMessage(b)); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	if err := m.ProcessNewData(FrameMessage(a)); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	got, ok = m.NextPacket()
	if !ok || !bytes.Equal(got, b) {
		t.Fatalf("NextPacket = %q, want %q", got, b)
	}
	got, ok = m.NextPacket()
	if !ok || !bytes.Equal(got, a) {
		t.Fatalf("NextPacket = %q, want %q", got, a)
	}
	if m.HasPackets() {
		t.Fatal("expected queue drained")
	}
}

func TestProcessSplitPayloadAcrossReads(t *testing.T) {
	m := NewFramingManager()
	a := []byte("ABCDEF")
	framed := FrameMessage(a)

	if err := m.ProcessNewData(framed[:6]); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	if m.HasPackets() {
		t.Fatal("packet should not be complete yet")
	}
	if err := m.ProcessNewData(framed[6:8]); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	if m.HasPackets() {
		t.Fatal("packet should not be complete yet")
	}
	if err := m.ProcessNewData(framed[8:]); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	got, ok := m.NextPacket()
	if !ok || !bytes.Equal(got, a) {
		t.Fatalf("NextPacket = %q, %v; want %q, true", got, ok, a)
	}
}

func TestProcessSplitLengthPrefixIsFatal(t *testing.T) {
	m := NewFramingManager()
	framed := FrameMessage([]byte("XYZ"))

	if err := m.ProcessNewData(framed[:2]); err == nil {
		t.Fatal("expected fatal error when the length prefix is split across reads")
	} else if !errors.Is(err, minhtonerr.ErrTransportFatal) {
		t.Fatalf("error = %v, want wrapping ErrTransportFatal", err)
	}
}

func TestProcessMultiplePacketsInOneChunk(t *testing.T) {
	m := NewFramingManager()
	a := []byte("ABCDEF")
	b := []byte("XYZ")

	combined := append(append([]byte{}, FrameMessage(a)...), FrameMessage(b)...)
	if err := m.ProcessNewData(combined); err != nil {
		t.Fatalf("ProcessNewData: %v", err)
	}
	got, ok := m.NextPacket()
	if !ok || !bytes.Equal(got, a) {
		t.Fatalf("first packet = %q, want %q", got, a)
	}
	got, ok = m.NextPacket()
	if !ok || !bytes.Equal(got, b) {
		t.Fatalf("second packet = %q, want %q", got, b)
	}
	if m.HasPackets() {
		t.Fatal("expected queue drained")
	}
}

func TestNextPacketOnEmptyQueue(t *testing.T) {
	m := NewFramingManager()
	if _, ok := m.NextPacket(); ok {
		t.Fatal("expected ok=false on an empty queue")
	}
}
