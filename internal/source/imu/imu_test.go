package imu

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"
)

func encodePacket(t *testing.T, p packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, p); err != nil {
		t.Fatal(err)
	}
	buf.WriteString(stopSequence)
	if buf.Len() != packetSize {
		t.Fatalf("encoded packet is %d bytes, want %d", buf.Len(), packetSize)
	}
	return buf.Bytes()
}

func TestDecodePacket(t *testing.T) {
	wall := time.Now()
	raw := encodePacket(t, packet{
		Seq:    7,
		Millis: 1500,
		AccelX: 0.25, AccelY: -0.5, AccelZ: 9.81,
		Alpha: 10, Beta: -20, Gamma: 30,
	})

	ev, err := decodePacket(raw[:payloadSize], wall)
	if err != nil {
		t.Fatalf("decodePacket: %v", err)
	}

	if ev.Acceleration.X != 0.25 || float32(ev.Acceleration.Z) != 9.81 {
		t.Errorf("acceleration = %+v", ev.Acceleration)
	}
	if ev.RotationRate.Beta != -20 {
		t.Errorf("rotation = %+v", ev.RotationRate)
	}
	if ev.Acceleration.Mono != 1500 {
		t.Errorf("mono = %v, want 1500", ev.Acceleration.Mono)
	}
	if !ev.Acceleration.Wall.Equal(wall) {
		t.Errorf("wall = %v, want %v", ev.Acceleration.Wall, wall)
	}
}

// chunkReader returns its data in small fragments, like a serial port
// read with a short timeout would.
type chunkReader struct {
	data []byte
	pos  int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, nil
	}
	n := copy(p[:min(len(p), 3)], c.data[c.pos:])
	c.pos += n
	return n, nil
}

func TestReadPacketFraming(t *testing.T) {
	raw := encodePacket(t, packet{Seq: 1, Millis: 10, AccelZ: 9.81})

	r := NewReader("test", nil)
	ok, err := r.readPacket(context.Background(), &chunkReader{data: raw})
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if !ok {
		t.Fatal("well-framed packet rejected")
	}

	// Corrupt the stop sequence.
	bad := append([]byte(nil), raw...)
	bad[len(bad)-1] = 'X'
	ok, err = r.readPacket(context.Background(), &chunkReader{data: bad})
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if ok {
		t.Fatal("mis-framed packet accepted")
	}
}

func TestResyncFindsStopSequence(t *testing.T) {
	// Garbage, then a stop sequence, then the next packet boundary.
	data := append([]byte{0x01, 0x02, '\r', 0x03}, []byte(stopSequence)...)
	r := NewReader("test", nil)

	src := &chunkReader{data: data}
	if err := r.resync(context.Background(), src); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if src.pos != len(data) {
		t.Errorf("resync stopped at byte %d, want %d", src.pos, len(data))
	}
}
