// Package stream exposes the pull-based consumption side of the sample
// source to the host pipeline.
package stream

import (
	"github.com/fieldscale/iqstream/internal/iq/demux"
	"github.com/fieldscale/iqstream/internal/iq/ring"
)

// Consumer composes the shared ring buffer with a sample demultiplexer. The
// host pipeline owns the per-channel output buffers and the invocation
// cadence; Produce never blocks waiting for data and never consumes a
// partial sample group.
type Consumer struct {
	buf *ring.Buffer
	dmx *demux.Demux
}

// NewConsumer binds a consumer to the ring buffer fed by the capture session.
func NewConsumer(buf *ring.Buffer, dmx *demux.Demux) *Consumer {
	return &Consumer{buf: buf, dmx: dmx}
}

// GroupBytes returns the wire size of one sample across all configured
// channels, the granularity Produce consumes in.
func (c *Consumer) GroupBytes() int {
	return c.dmx.GroupBytes()
}

// Produce decodes up to requested samples into the per-channel frames and
// returns how many were delivered. Zero is a normal "no data yet" outcome;
// the host must act on short counts rather than assume the request was
// satisfied in full.
func (c *Consumer) Produce(frames [][]complex64, requested int) (int, error) {
	if requested <= 0 {
		return 0, nil
	}

	deliverable := c.buf.Available() / c.dmx.GroupBytes()
	if deliverable > requested {
		deliverable = requested
	}
	if deliverable == 0 {
		return 0, nil
	}

	if err := c.dmx.Decode(c.buf, frames, deliverable); err != nil {
		return 0, err
	}
	return deliverable, nil
}
