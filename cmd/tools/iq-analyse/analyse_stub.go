//go:build !pcap
// +build !pcap

package main

import (
	"fmt"

	"github.com/fieldscale/iqstream/internal/iq/ring"
	"github.com/fieldscale/iqstream/internal/iq/stream"
)

// analysePCAP is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable PCAP file analysis.
func analysePCAP(pcapFile string, udpPort uint16, buf *ring.Buffer, consumer *stream.Consumer, channels int) error {
	return fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to analyse %s", pcapFile)
}
