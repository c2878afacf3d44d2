// Package iq holds the shared types of the UDP IQ sample source: the wire
// formats a sender may use to encode complex baseband samples, helpers for
// the per-channel output buffers the host pipeline wires in, and the
// interfaces of external collaborators.
package iq

import (
	"fmt"
	"time"
)

// WireFormat identifies the on-the-wire byte encoding of one complex sample's
// real/imaginary components.
type WireFormat int

const (
	// PackedByte encodes one sample per channel as two signed 8-bit values.
	PackedByte WireFormat = iota + 1
	// Packed4Bit encodes one sample per channel as two 4-bit codes in one byte.
	Packed4Bit
	// PackedFloat encodes one sample per channel as two little-endian IEEE-754
	// float32 values.
	PackedFloat
)

// Wire format names as accepted in sender configuration files.
const (
	formatNameByte  = "cbyte"
	formatName4Bit  = "c4bits"
	formatNameFloat = "cfloat"
)

// Channel count bounds for a single UDP source.
const (
	MinChannels = 1
	MaxChannels = 4
)

// ParseWireFormat maps a configured wire format name to its WireFormat.
// An unknown name is a configuration error, never a per-sample failure.
func ParseWireFormat(name string) (WireFormat, error) {
	switch name {
	case formatNameByte:
		return PackedByte, nil
	case formatName4Bit:
		return Packed4Bit, nil
	case formatNameFloat:
		return PackedFloat, nil
	default:
		return 0, fmt.Errorf("unknown wire format %q (expected %s, %s or %s)",
			name, formatNameByte, formatName4Bit, formatNameFloat)
	}
}

// BytesPerSample returns the number of payload bytes one decoded sample
// occupies on the wire for a single channel.
func (f WireFormat) BytesPerSample() int {
	switch f {
	case PackedByte:
		return 2
	case Packed4Bit:
		return 1
	case PackedFloat:
		return 8
	default:
		return 0
	}
}

// Valid reports whether f is one of the three known wire formats.
func (f WireFormat) Valid() bool {
	return f == PackedByte || f == Packed4Bit || f == PackedFloat
}

func (f WireFormat) String() string {
	switch f {
	case PackedByte:
		return formatNameByte
	case Packed4Bit:
		return formatName4Bit
	case PackedFloat:
		return formatNameFloat
	default:
		return fmt.Sprintf("WireFormat(%d)", int(f))
	}
}

// AllocFrames allocates one output buffer of n complex samples per channel.
// The host pipeline normally owns these buffers; this helper exists for
// tools and tests that stand in for the host.
func AllocFrames(channels, n int) [][]complex64 {
	frames := make([][]complex64, channels)
	for i := range frames {
		frames[i] = make([]complex64, n)
	}
	return frames
}

// PositionLogger is the external position-logging collaborator. The sample
// source never writes position fixes itself; an embedding application may
// attach an implementation that appends fixes to its own log file.
type PositionLogger interface {
	LogPosition(t time.Time, latitudeDeg, longitudeDeg, heightM float64) error
}
