// Command iqstream captures UDP-encapsulated RF sample streams on a network
// interface, demultiplexes them into complex baseband channels, and reports
// capture statistics. It stands in for a host signal-processing pipeline:
// decoded samples are pulled on a fixed cadence and accounted, and session
// telemetry is optionally persisted to SQLite.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fieldscale/iqstream/internal/config"
	"github.com/fieldscale/iqstream/internal/iq"
	"github.com/fieldscale/iqstream/internal/iq/demux"
	"github.com/fieldscale/iqstream/internal/iq/monitor"
	"github.com/fieldscale/iqstream/internal/iq/network"
	"github.com/fieldscale/iqstream/internal/iq/ring"
	"github.com/fieldscale/iqstream/internal/iq/stream"
	"github.com/fieldscale/iqstream/internal/iqdb"
)

var (
	device       = flag.String("device", "eth0", "Capture interface")
	udpPort      = flag.Int("udp-port", 1234, "Destination UDP port carrying sample payloads")
	wireFormat   = flag.String("format", "cbyte", "Wire sample format: cbyte, c4bits or cfloat")
	channels     = flag.Int("channels", 1, "Number of baseband channels (1-4)")
	iqSwap       = flag.Bool("iq-swap", false, "Swap I and Q components")
	ringCapacity = flag.Int("ring", ring.DefaultCapacity, "Ring buffer capacity in bytes")
	configFile   = flag.String("config", "", "JSON source config file (overrides the flags above)")
	dbFile       = flag.String("db", "", "SQLite file for session telemetry (empty disables)")
	batchSize    = flag.Int("batch", 4096, "Samples requested per pull")
	pollInterval = flag.Int("poll-ms", 10, "Pull cadence in milliseconds")
	logInterval  = flag.Int("log-interval", 10, "Statistics logging interval in seconds")
)

func loadConfig() (*config.SourceConfig, error) {
	if *configFile != "" {
		return config.LoadSourceConfig(*configFile)
	}
	cfg := config.DefaultSourceConfig()
	cfg.Device = *device
	cfg.Port = *udpPort
	cfg.WireFormat = *wireFormat
	cfg.Channels = *channels
	cfg.IQSwap = *iqSwap
	cfg.RingCapacity = *ringCapacity
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	buf, err := ring.New(cfg.RingCapacity)
	if err != nil {
		log.Fatalf("failed to create ring buffer: %v", err)
	}
	dmx, err := demux.New(cfg.Format(), cfg.Channels, cfg.IQSwap)
	if err != nil {
		log.Fatalf("failed to create demultiplexer: %v", err)
	}

	stats := monitor.NewCaptureStats()
	consumer := stream.NewConsumer(buf, dmx)

	session, err := network.NewSession(network.SessionConfig{
		Device: cfg.Device,
		Port:   cfg.Port,
		Ring:   buf,
		Stats:  stats,
	})
	if err != nil {
		log.Fatalf("failed to create capture session: %v", err)
	}

	var db *iqdb.IQDB
	var sessionID int64
	if *dbFile != "" {
		db, err = iqdb.NewIQDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open telemetry database: %v", err)
		}
		defer db.Close()
	}

	if err := session.Start(); err != nil {
		log.Fatalf("failed to start capture: %v", err)
	}
	log.Printf("iqstream capturing on %s udp/%d: format=%s channels=%d swap=%v ring=%d bytes",
		cfg.Device, cfg.Port, cfg.WireFormat, cfg.Channels, cfg.IQSwap, cfg.RingCapacity)

	if db != nil {
		sessionID, err = db.RecordSessionStart(cfg.Device, cfg.Port, cfg.WireFormat, cfg.Channels)
		if err != nil {
			log.Printf("failed to record session start: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Lifetime totals, fed by the stats routine and finalized at shutdown.
	var totalsMu sync.Mutex
	var totPackets, totBytes, totOverflows, totSamples int64
	addTotals := func(packets, bytes, overflows, samples int64) {
		totalsMu.Lock()
		totPackets += packets
		totBytes += bytes
		totOverflows += overflows
		totSamples += samples
		totalsMu.Unlock()
	}

	var wg sync.WaitGroup

	// Pull routine: stands in for the host pipeline's scheduler. A short
	// count is normal; a zero count just means no data arrived yet.
	wg.Add(1)
	go func() {
		defer wg.Done()
		frames := iq.AllocFrames(cfg.Channels, *batchSize)
		ticker := time.NewTicker(time.Duration(*pollInterval) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Print("pull routine terminated")
				return
			case <-ticker.C:
				n, err := consumer.Produce(frames, *batchSize)
				if err != nil {
					log.Fatalf("sample decode failed: %v", err)
				}
				if n > 0 {
					stats.AddSamples(n)
				}
			}
		}
	}()

	// Stats routine: periodic rate logging and optional SQLite snapshots.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(*logInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Print("stats routine terminated")
				return
			case <-ticker.C:
				packets, bytes, overflows, samples := stats.LogStats()
				addTotals(packets, bytes, overflows, samples)
				if db == nil || (packets == 0 && overflows == 0) {
					continue
				}
				if snap := stats.GetLatestSnapshot(); snap != nil {
					if err := db.RecordStatsSnapshot(sessionID, snap.PacketsPerSec, snap.MBPerSec, snap.SamplesPerSec, snap.OverflowCount); err != nil {
						log.Printf("failed to record stats snapshot: %v", err)
					}
				}
			}
		}
	}()

	wg.Wait()

	if err := session.Stop(); err != nil {
		log.Printf("capture shutdown failed: %v", err)
	}

	// Fold in whatever accumulated since the last tick.
	packets, bytes, overflows, samples, _ := stats.GetAndReset()
	addTotals(packets, bytes, overflows, samples)
	if db != nil {
		totalsMu.Lock()
		err := db.RecordSessionStop(sessionID, totPackets, totBytes, totOverflows, totSamples)
		totalsMu.Unlock()
		if err != nil {
			log.Printf("failed to record session stop: %v", err)
		}
	}

	log.Printf("graceful shutdown complete after %s", stats.GetUptime().Round(time.Second))
}
