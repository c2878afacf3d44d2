//go:build pcap
// +build pcap

package main

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"gonum.org/v1/gonum/stat"

	"github.com/fieldscale/iqstream/internal/iq"
	"github.com/fieldscale/iqstream/internal/iq/parse"
	"github.com/fieldscale/iqstream/internal/iq/ring"
	"github.com/fieldscale/iqstream/internal/iq/stream"
)

const analyseBatch = 4096

// analysePCAP runs every frame of the capture file through the header walk,
// buffers accepted payloads, decodes them in batches and prints per-channel
// magnitude statistics.
func analysePCAP(pcapFile string, udpPort uint16, buf *ring.Buffer, consumer *stream.Consumer, channels int) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	log.Printf("PCAP BPF filter set: %s", filterStr)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	frames := iq.AllocFrames(channels, analyseBatch)
	magnitudes := make([][]float64, channels)

	packetCount := 0
	acceptedCount := 0

	drain := func() error {
		for {
			n, err := consumer.Produce(frames, analyseBatch)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			for ch := 0; ch < channels; ch++ {
				for s := 0; s < n; s++ {
					magnitudes[ch] = append(magnitudes[ch], cmplx.Abs(complex128(frames[ch][s])))
				}
			}
		}
	}

	for packet := range packetSource.Packets() {
		if packet == nil {
			break
		}
		packetCount++

		payload, ok := parse.UDPPayload(packet.Data(), udpPort)
		if !ok {
			continue
		}
		acceptedCount++

		if err := buf.Write(payload); err != nil {
			// Decode what is buffered, then retry the payload once.
			if err := drain(); err != nil {
				return err
			}
			if err := buf.Write(payload); err != nil {
				log.Printf("payload of %d bytes dropped: %v", len(payload), err)
			}
		}
		if buf.Available() >= analyseBatch*consumer.GroupBytes() {
			if err := drain(); err != nil {
				return err
			}
		}
	}
	if err := drain(); err != nil {
		return err
	}

	log.Printf("PCAP analysis complete: %d packets read, %d accepted, %d residual bytes",
		packetCount, acceptedCount, buf.Available())

	for ch := 0; ch < channels; ch++ {
		mags := magnitudes[ch]
		if len(mags) == 0 {
			fmt.Printf("channel %d: no samples decoded\n", ch)
			continue
		}
		mean := stat.Mean(mags, nil)
		std := stat.StdDev(mags, nil)
		maxMag := math.Inf(-1)
		for _, m := range mags {
			if m > maxMag {
				maxMag = m
			}
		}
		fmt.Printf("channel %d: %d samples, magnitude mean=%.4f std=%.4f max=%.4f\n",
			ch, len(mags), mean, std, maxMag)
	}
	return nil
}
