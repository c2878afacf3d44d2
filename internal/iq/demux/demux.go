// Package demux converts raw buffered payload bytes into per-channel complex
// baseband samples under one of three wire formats. All channels of one
// sample are interleaved on the wire and decode in lockstep, so the demux
// always consumes whole sample groups spanning every configured channel.
package demux

import (
	"fmt"
	"math"

	"github.com/fieldscale/iqstream/internal/iq"
	"github.com/fieldscale/iqstream/internal/iq/ring"
)

// nibble4Bit maps a 4-bit wire code to its signed odd amplitude. Codes 8-15
// are the negative half: code >= 8 -> 2*(code-16)+1, else 2*code+1, covering
// the odd integers in [-15, 15].
var nibble4Bit = [16]int8{
	1, 3, 5, 7, 9, 11, 13, 15,
	-15, -13, -11, -9, -7, -5, -3, -1,
}

// Demux is a stateful decoder bound to one wire format, channel count and
// I/Q-swap setting, all fixed at construction. It is not safe for concurrent
// use on its own; the ring buffer's lock serialises decoding against the
// producer.
type Demux struct {
	format   iq.WireFormat
	channels int
	swap     bool
	// groupBytes is the wire size of one sample across all channels.
	groupBytes int
}

// New validates the configuration and returns a Demux. An unknown wire
// format or an out-of-range channel count is fatal here, never mid-stream.
func New(format iq.WireFormat, channels int, swap bool) (*Demux, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("demux: unknown wire format %v", format)
	}
	if channels < iq.MinChannels || channels > iq.MaxChannels {
		return nil, fmt.Errorf("demux: channel count %d out of range [%d, %d]",
			channels, iq.MinChannels, iq.MaxChannels)
	}
	return &Demux{
		format:     format,
		channels:   channels,
		swap:       swap,
		groupBytes: format.BytesPerSample() * channels,
	}, nil
}

// Format returns the configured wire format.
func (d *Demux) Format() iq.WireFormat { return d.format }

// Channels returns the configured channel count.
func (d *Demux) Channels() int { return d.channels }

// GroupBytes returns the number of payload bytes one decoded sample occupies
// across all configured channels.
func (d *Demux) GroupBytes() int { return d.groupBytes }

// Decode reads n sample groups from the front of buf and writes n complex
// values into each per-channel output slice, consuming the bytes in the same
// critical section. The frames slice must carry exactly one output buffer
// per configured channel, each with room for n samples; a mismatch means the
// host wired a different channel set than was configured and is an error,
// not a truncation.
func (d *Demux) Decode(buf *ring.Buffer, frames [][]complex64, n int) error {
	if len(frames) != d.channels {
		return fmt.Errorf("demux: %d output channels wired, %d configured",
			len(frames), d.channels)
	}
	for ch := range frames {
		if len(frames[ch]) < n {
			return fmt.Errorf("demux: channel %d output holds %d samples, need %d",
				ch, len(frames[ch]), n)
		}
	}
	if n == 0 {
		return nil
	}

	return buf.Consume(n*d.groupBytes, func(first, second []byte) {
		cur := cursor{first: first, second: second}
		for s := 0; s < n; s++ {
			for ch := 0; ch < d.channels; ch++ {
				frames[ch][s] = d.decodeOne(&cur)
			}
		}
	})
}

// decodeOne consumes one channel's worth of bytes and returns the complex
// sample. The swap flag orientation is preserved per format exactly as the
// sender defines it: byte and float formats assign the second decoded value
// to the real part when not swapped, the 4-bit format assigns the first.
func (d *Demux) decodeOne(cur *cursor) complex64 {
	switch d.format {
	case iq.PackedByte:
		b0 := float32(int8(cur.next()))
		b1 := float32(int8(cur.next()))
		if d.swap {
			return complex(b0, b1)
		}
		return complex(b1, b0)

	case iq.Packed4Bit:
		c := cur.next()
		lo := float32(nibble4Bit[c&0x0F])
		hi := float32(nibble4Bit[c>>4])
		if d.swap {
			return complex(hi, lo)
		}
		return complex(lo, hi)

	case iq.PackedFloat:
		f0 := cur.float32LE()
		f1 := cur.float32LE()
		if d.swap {
			return complex(f0, f1)
		}
		return complex(f1, f0)
	}
	// Unreachable: New rejects unknown formats.
	return 0
}

// cursor steps through the one or two slices a ring consume callback
// delivers, so sample groups that straddle the wrap boundary decode without
// an intermediate copy.
type cursor struct {
	first  []byte
	second []byte
	pos    int
}

func (c *cursor) next() byte {
	if c.pos < len(c.first) {
		b := c.first[c.pos]
		c.pos++
		return b
	}
	b := c.second[c.pos-len(c.first)]
	c.pos++
	return b
}

func (c *cursor) float32LE() float32 {
	bits := uint32(c.next()) |
		uint32(c.next())<<8 |
		uint32(c.next())<<16 |
		uint32(c.next())<<24
	return math.Float32frombits(bits)
}
