//go:build !pcap
// +build !pcap

package network

import "fmt"

// stubHandleOpener stands in for the libpcap opener when PCAP support is
// disabled. Build with -tags=pcap to enable live capture.
type stubHandleOpener struct{}

// NewLiveHandleOpener returns an opener that fails with a build-tag hint.
func NewLiveHandleOpener() HandleOpener {
	return stubHandleOpener{}
}

// Open always fails: live capture requires the 'pcap' build tag.
func (stubHandleOpener) Open(device string, port int) (CaptureHandle, error) {
	return nil, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to capture on %s", device)
}
