// Package network owns the producer side of the sample source: a capture
// session with an explicit Idle/Capturing lifecycle, a dedicated capture
// goroutine feeding accepted UDP payloads into the shared ring buffer, and
// the injectable capture-handle plumbing that keeps the session testable
// without libpcap.
package network

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/fieldscale/iqstream/internal/iq/parse"
	"github.com/fieldscale/iqstream/internal/iq/ring"
)

// SessionState is the lifecycle state of a capture session.
type SessionState int

const (
	// Idle means no capture goroutine is running and no handle is open.
	Idle SessionState = iota
	// Capturing means the capture goroutine is draining the handle.
	Capturing
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// DefaultStopTimeout bounds how long Stop waits for the capture goroutine to
// notice the break signal. The live handle's read timeout is one second, so
// five of those is a comfortable margin before declaring a leak.
const DefaultStopTimeout = 5 * time.Second

// ErrStopTimeout is returned by Stop when the capture goroutine fails to
// exit within the stop timeout. The handle and guard socket are left open;
// the process is leaking a thread and the caller decides shutdown policy.
var ErrStopTimeout = errors.New("network: capture goroutine did not exit before timeout")

// CaptureStatsInterface receives per-packet accounting from the capture loop.
type CaptureStatsInterface interface {
	AddPacket(bytes int)
	AddOverflow()
}

// noopStats is a CaptureStatsInterface implementation that does nothing.
// It is used as a safe default when no stats collector is provided.
type noopStats struct{}

func (noopStats) AddPacket(bytes int) {}
func (noopStats) AddOverflow()        {}

// SessionConfig contains configuration options for a capture session.
type SessionConfig struct {
	// Device is the capture interface identifier, e.g. "eth0".
	Device string

	// Port is the destination UDP port carrying sample payloads.
	Port int

	// Ring is the shared buffer accepted payloads are written into.
	Ring *ring.Buffer

	// Stats receives packet and overflow accounting (optional).
	Stats CaptureStatsInterface

	// Opener creates the capture handle. Defaults to the live pcap-backed
	// opener; tests inject a MockHandleOpener.
	Opener HandleOpener

	// Guard binds the ICMP-suppression socket. Defaults to UDPPortGuard.
	Guard PortGuard

	// StopTimeout bounds the Stop join wait. Defaults to
	// DefaultStopTimeout.
	StopTimeout time.Duration
}

// Session captures frames on one interface and writes the UDP payloads
// addressed to the configured port into the ring buffer. Exactly one capture
// goroutine runs while the session is Capturing; only Start and Stop
// transition the state.
type Session struct {
	device      string
	port        uint16
	buf         *ring.Buffer
	stats       CaptureStatsInterface
	opener      HandleOpener
	guard       PortGuard
	stopTimeout time.Duration

	mu        sync.Mutex
	state     SessionState
	handle    CaptureHandle
	guardConn io.Closer
	quit      chan struct{}
	quitSent  bool
	exited    chan struct{}
}

// NewSession validates the configuration and returns an Idle session.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Device == "" {
		return nil, errors.New("network: capture device is required")
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, fmt.Errorf("network: UDP port %d out of range", config.Port)
	}
	if config.Ring == nil {
		return nil, errors.New("network: ring buffer is required")
	}

	stats := config.Stats
	if stats == nil {
		stats = noopStats{}
	}
	opener := config.Opener
	if opener == nil {
		opener = NewLiveHandleOpener()
	}
	guard := config.Guard
	if guard == nil {
		guard = UDPPortGuard{}
	}
	stopTimeout := config.StopTimeout
	if stopTimeout == 0 {
		stopTimeout = DefaultStopTimeout
	}

	return &Session{
		device:      config.Device,
		port:        uint16(config.Port),
		buf:         config.Ring,
		stats:       stats,
		opener:      opener,
		guard:       guard,
		stopTimeout: stopTimeout,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the capture handle, binds the ICMP-suppression socket and
// spawns the capture goroutine. Device-open and socket-bind failures are
// startup errors returned to the caller; nothing is left half-open.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Capturing {
		return errors.New("network: session already capturing")
	}

	handle, err := s.opener.Open(s.device, int(s.port))
	if err != nil {
		return fmt.Errorf("failed to open capture device %s: %w", s.device, err)
	}

	guardConn, err := s.guard.Bind(int(s.port))
	if err != nil {
		handle.Close()
		return fmt.Errorf("failed to bind ICMP guard socket on port %d: %w", s.port, err)
	}

	s.handle = handle
	s.guardConn = guardConn
	s.quit = make(chan struct{})
	s.quitSent = false
	s.exited = make(chan struct{})
	s.state = Capturing

	go s.captureLoop(handle, s.quit, s.exited)

	log.Printf("capture session started on %s (udp port %d)", s.device, s.port)
	return nil
}

// Stop signals the capture loop to break, joins the goroutine and releases
// the handle and guard socket. After a nil return no further ring writes
// occur. A join that outlasts the stop timeout is a resource leak: it is
// logged and returned, and the session stays Capturing.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Capturing {
		return nil
	}

	// Stop may be retried after a timeout; only close quit once.
	if !s.quitSent {
		close(s.quit)
		s.quitSent = true
	}
	select {
	case <-s.exited:
	case <-time.After(s.stopTimeout):
		log.Printf("capture session on %s: %v", s.device, ErrStopTimeout)
		return ErrStopTimeout
	}

	s.handle.Close()
	if err := s.guardConn.Close(); err != nil {
		log.Printf("failed to close ICMP guard socket: %v", err)
	}
	s.handle = nil
	s.guardConn = nil
	s.state = Idle

	log.Printf("capture session stopped on %s", s.device)
	return nil
}

// captureLoop drains the handle until the quit channel closes. Each captured
// frame runs through the header walk; accepted payloads go into the ring.
// A full ring drops the payload and counts it, capture continues.
func (s *Session) captureLoop(handle CaptureHandle, quit <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	for {
		select {
		case <-quit:
			return
		default:
		}

		frame, err := handle.ReadPacket()
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			// Anything else means the handle is gone; the session is
			// unwound by Stop.
			log.Printf("capture read error on %s: %v", s.device, err)
			return
		}

		payload, ok := parse.UDPPayload(frame, s.port)
		if !ok {
			continue
		}

		s.stats.AddPacket(len(payload))
		if err := s.buf.Write(payload); err != nil {
			if errors.Is(err, ring.ErrOverflow) {
				s.stats.AddOverflow()
				continue
			}
			log.Printf("ring write failed: %v", err)
		}
	}
}
