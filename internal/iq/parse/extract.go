// Package parse extracts UDP payloads from raw captured Ethernet frames.
//
// The sender encapsulates sample data in plain UDP/IPv4, so the frame walk is
// small enough that no dissection library is needed on the hot path: ethertype
// check, IHL-derived IP header length, destination-port filter, UDP
// total-length bound. All field reads are explicit bounds-checked offset
// arithmetic on the captured bytes; no struct overlays, no alignment
// assumptions. UDP and IP checksums are deliberately not validated.
package parse

import "encoding/binary"

// Frame layout constants for the UDP/IPv4-over-Ethernet encapsulation.
const (
	ethHeaderLen  = 14     // destination MAC (6) + source MAC (6) + ethertype (2)
	etherTypeIPv4 = 0x0800 // ethertype at frame bytes 12-13
	minIPHeader   = 20     // IPv4 header without options
	udpHeaderLen  = 8      // source port, destination port, length, checksum

	ethTypeOffset = 12 // ethertype field within the Ethernet header
	udpDstOffset  = 2  // destination port within the UDP header
	udpLenOffset  = 4  // total length within the UDP header
)

// UDPPayload walks the Ethernet/IPv4/UDP headers of a captured frame and
// returns the UDP payload when the frame is an IPv4 datagram addressed to
// dstPort. The returned slice aliases frame; callers that keep it past the
// frame's lifetime must copy.
//
// Malformed or irrelevant frames (wrong ethertype, port mismatch,
// inconsistent header lengths, payload extending past the captured bytes)
// yield ok == false and are otherwise ignored.
func UDPPayload(frame []byte, dstPort uint16) (payload []byte, ok bool) {
	if len(frame) < ethHeaderLen+minIPHeader+udpHeaderLen {
		return nil, false
	}
	if binary.BigEndian.Uint16(frame[ethTypeOffset:]) != etherTypeIPv4 {
		return nil, false
	}

	// IP header length is the low nibble of the version/IHL byte, in
	// 32-bit words. Anything below the optionless minimum is inconsistent.
	ipLen := int(frame[ethHeaderLen]&0x0F) * 4
	if ipLen < minIPHeader {
		return nil, false
	}

	udpStart := ethHeaderLen + ipLen
	if udpStart+udpHeaderLen > len(frame) {
		return nil, false
	}
	if binary.BigEndian.Uint16(frame[udpStart+udpDstOffset:]) != dstPort {
		return nil, false
	}

	// UDP total length covers the 8-byte header. A length below the header
	// size, or a payload extending past what was actually captured, marks
	// the datagram as truncated or inconsistent.
	payloadLen := int(binary.BigEndian.Uint16(frame[udpStart+udpLenOffset:])) - udpHeaderLen
	if payloadLen < 0 {
		return nil, false
	}
	payloadStart := udpStart + udpHeaderLen
	if payloadStart+payloadLen > len(frame) {
		return nil, false
	}
	return frame[payloadStart : payloadStart+payloadLen], true
}
