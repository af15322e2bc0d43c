// Package imu reads motion data from an external IMU over a serial
// port. The device streams fixed-size little-endian packets terminated
// by a CR LF stop sequence.
package imu

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"motion-recorder/internal/sensor"
	"motion-recorder/internal/source"
)

const (
	// DefaultBaudRate matches the firmware's configured line speed.
	DefaultBaudRate = 115200

	// readTimeout keeps port reads short so cancellation is noticed
	// between packets.
	readTimeout = 5 * time.Millisecond

	payloadSize = 32
	packetSize  = payloadSize + len(stopSequence)

	// resyncThreshold is the number of consecutive framing errors
	// tolerated before the stream is resynchronized.
	resyncThreshold = 3
)

const stopSequence = "\r\n"

// packet is the device's wire format: a sequence number, milliseconds
// since device boot, and six sensor axes.
type packet struct {
	Seq    uint32
	Millis uint32

	AccelX, AccelY, AccelZ float32
	Alpha, Beta, Gamma     float32
}

// WithLogger sets the reader's logger.
func WithLogger(logger *slog.Logger) func(*Reader) {
	return func(r *Reader) {
		r.logger = logger.With(slog.String("port", r.portName))
	}
}

// WithBaudRate overrides the serial line speed.
func WithBaudRate(baudRate int) func(*Reader) {
	return func(r *Reader) {
		if baudRate > 0 {
			r.baudRate = baudRate
		}
	}
}

// Reader streams motion packets from a serial port into the pipeline.
type Reader struct {
	portName string
	sink     source.Sink

	logger   *slog.Logger
	baudRate int

	buf [packetSize]byte
}

// NewReader creates a reader for the given port feeding the sink.
func NewReader(portName string, sink source.Sink, options ...func(*Reader)) *Reader {
	r := Reader{
		portName: portName,
		sink:     sink,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		baudRate: DefaultBaudRate,
	}
	for _, option := range options {
		option(&r)
	}
	return &r
}

// Run opens the port and streams packets until the context is
// cancelled.
func (r *Reader) Run(ctx context.Context) error {
	port, err := serial.Open(r.portName, &serial.Mode{BaudRate: r.baudRate})
	if err != nil {
		return fmt.Errorf("opening serial port %s: %w", r.portName, err)
	}
	defer port.Close()

	if err := port.SetReadTimeout(readTimeout); err != nil {
		return fmt.Errorf("setting read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("resetting input buffer: %w", err)
	}
	if err := r.resync(ctx, port); err != nil {
		return err
	}

	r.logger.Info("serial IMU source started",
		slog.Int("baudRate", r.baudRate))

	var framingErrors int
	for {
		if ctx.Err() != nil {
			r.logger.Info("serial IMU source stopped")
			return nil
		}

		ok, err := r.readPacket(ctx, port)
		if err != nil {
			return fmt.Errorf("reading packet: %w", err)
		}
		if !ok {
			framingErrors++
			if framingErrors >= resyncThreshold {
				r.logger.Warn("packet stream out of sync, resynchronizing")
				if err := r.resync(ctx, port); err != nil {
					return err
				}
				framingErrors = 0
			}
			continue
		}
		framingErrors = 0

		ev, err := decodePacket(r.buf[:payloadSize], time.Now())
		if err != nil {
			r.logger.Warn(fmt.Sprintf("decoding packet: %s", err))
			continue
		}
		r.sink.PutMotion(ev)
	}
}

// readPacket fills the buffer with one framed packet. It returns false
// without an error when the stop sequence check fails.
func (r *Reader) readPacket(ctx context.Context, port io.Reader) (bool, error) {
	var count int
	for count < packetSize {
		if ctx.Err() != nil {
			return false, nil
		}
		n, err := port.Read(r.buf[count:])
		if err != nil {
			return false, err
		}
		count += n
	}
	return string(r.buf[payloadSize:]) == stopSequence, nil
}

// resync discards bytes until a stop sequence passes, realigning the
// reader with packet boundaries.
func (r *Reader) resync(ctx context.Context, port io.Reader) error {
	var prev, cur byte
	one := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := port.Read(one)
		if err != nil {
			return fmt.Errorf("resynchronizing stream: %w", err)
		}
		if n == 0 {
			continue
		}
		prev, cur = cur, one[0]
		if prev == stopSequence[0] && cur == stopSequence[1] {
			return nil
		}
	}
}

func decodePacket(payload []byte, wall time.Time) (*sensor.MotionEvent, error) {
	var p packet
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	mono := float64(p.Millis)
	return &sensor.MotionEvent{
		Acceleration: &sensor.Acceleration{
			X:    float64(p.AccelX),
			Y:    float64(p.AccelY),
			Z:    float64(p.AccelZ),
			Wall: wall,
			Mono: mono,
		},
		RotationRate: &sensor.RotationRate{
			Alpha: float64(p.Alpha),
			Beta:  float64(p.Beta),
			Gamma: float64(p.Gamma),
			Wall:  wall,
			Mono:  mono,
		},
	}, nil
}
