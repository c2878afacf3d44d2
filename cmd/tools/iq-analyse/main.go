// Command iq-analyse replays a PCAP recording of a UDP sample stream through
// the same header walk and demultiplexer the live capture path uses, and
// reports per-channel magnitude statistics. Useful for verifying a sender's
// wire format and channel wiring before a live deployment.
package main

import (
	"flag"
	"log"

	"github.com/fieldscale/iqstream/internal/iq"
	"github.com/fieldscale/iqstream/internal/iq/demux"
	"github.com/fieldscale/iqstream/internal/iq/ring"
	"github.com/fieldscale/iqstream/internal/iq/stream"
)

var (
	pcapFile     = flag.String("pcap", "", "PCAP file to analyse (required)")
	udpPort      = flag.Int("udp-port", 1234, "Destination UDP port carrying sample payloads")
	wireFormat   = flag.String("format", "cbyte", "Wire sample format: cbyte, c4bits or cfloat")
	channels     = flag.Int("channels", 1, "Number of baseband channels (1-4)")
	iqSwap       = flag.Bool("iq-swap", false, "Swap I and Q components")
	ringCapacity = flag.Int("ring", ring.DefaultCapacity, "Ring buffer capacity in bytes")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("a PCAP file is required: -pcap <file>")
	}

	format, err := iq.ParseWireFormat(*wireFormat)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	buf, err := ring.New(*ringCapacity)
	if err != nil {
		log.Fatalf("failed to create ring buffer: %v", err)
	}
	dmx, err := demux.New(format, *channels, *iqSwap)
	if err != nil {
		log.Fatalf("failed to create demultiplexer: %v", err)
	}
	consumer := stream.NewConsumer(buf, dmx)

	if err := analysePCAP(*pcapFile, uint16(*udpPort), buf, consumer, *channels); err != nil {
		log.Fatalf("analysis failed: %v", err)
	}
}
