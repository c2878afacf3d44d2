//go:build pcap
// +build pcap

package network

import (
	"fmt"
	"time"

	"github.com/google/gopacket/pcap"
)

// Live capture parameters. Snaplen covers a full Ethernet MTU frame; the
// read timeout bounds how long a ReadPacket call can sit before the capture
// loop gets to re-check its break signal.
const (
	liveSnapLen     = 1500
	liveReadTimeout = time.Second
)

// liveHandleOpener opens promiscuous libpcap handles pre-filtered to the
// sample sender's UDP port. The header walk in parse still enforces the port
// on every frame; the BPF filter just keeps unrelated traffic out of the
// capture buffer.
type liveHandleOpener struct{}

// NewLiveHandleOpener returns the libpcap-backed handle opener.
// This implementation is only available when building with the 'pcap' tag.
func NewLiveHandleOpener() HandleOpener {
	return liveHandleOpener{}
}

// Open opens the device for live capture.
func (liveHandleOpener) Open(device string, port int) (CaptureHandle, error) {
	handle, err := pcap.OpenLive(device, liveSnapLen, true, liveReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("pcap_open_live on %s: %w", device, err)
	}

	filterStr := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}

	return &pcapHandle{handle: handle}, nil
}

// pcapHandle adapts *pcap.Handle to the CaptureHandle interface.
type pcapHandle struct {
	handle *pcap.Handle
}

// ReadPacket returns the next captured frame, mapping the libpcap bounded
// wait expiry to ErrReadTimeout.
func (p *pcapHandle) ReadPacket() ([]byte, error) {
	data, _, err := p.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ErrReadTimeout
	}
	return data, err
}

// Close releases the libpcap handle.
func (p *pcapHandle) Close() {
	p.handle.Close()
}
