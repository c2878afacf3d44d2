package network

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ErrReadTimeout marks a bounded packet wait that expired with no packet
// available. The capture loop treats it as a cue to re-check its break
// signal, not as a failure.
var ErrReadTimeout = errors.New("network: packet read timed out")

// CaptureHandle is the minimal surface of an open packet capture handle.
// This abstraction enables unit testing without libpcap.
type CaptureHandle interface {
	// ReadPacket returns the next captured frame. The wait is bounded by
	// the handle's read timeout; expiry yields ErrReadTimeout.
	ReadPacket() ([]byte, error)

	// Close releases the capture handle.
	Close()
}

// HandleOpener defines an interface for opening capture handles.
// This abstraction enables dependency injection of handle creation.
type HandleOpener interface {
	// Open opens a capture handle on the named interface, pre-filtered to
	// UDP traffic on the given destination port where the backend
	// supports it.
	Open(device string, port int) (CaptureHandle, error)
}

// PortGuard binds the throwaway UDP socket that keeps the kernel from
// answering the sample sender with ICMP port-unreachable replies. The real
// consumption path is raw capture; the bound socket is never read.
type PortGuard interface {
	Bind(port int) (io.Closer, error)
}

// UDPPortGuard implements PortGuard with a real kernel UDP socket.
type UDPPortGuard struct{}

// Bind opens a UDP socket on the port across all interfaces.
func (UDPPortGuard) Bind(port int) (io.Closer, error) {
	return net.ListenUDP("udp", &net.UDPAddr{Port: port})
}

// MockCaptureHandle implements CaptureHandle for testing.
type MockCaptureHandle struct {
	mu sync.Mutex

	// Frames holds the raw frames to return from ReadPacket.
	Frames [][]byte

	// ReadIndex tracks the current position in Frames.
	ReadIndex int

	// ReadError is returned by every ReadPacket call if set.
	ReadError error

	// IdleWait simulates the bounded packet wait once Frames is
	// exhausted. Defaults to a short pause to keep test loops cool.
	IdleWait time.Duration

	// Closed indicates whether Close was called.
	Closed bool
}

// NewMockCaptureHandle creates a new MockCaptureHandle with the given frames.
func NewMockCaptureHandle(frames [][]byte) *MockCaptureHandle {
	return &MockCaptureHandle{
		Frames:   frames,
		IdleWait: time.Millisecond,
	}
}

// ReadPacket returns the next frame, or ErrReadTimeout after a simulated
// bounded wait once all frames have been delivered.
func (m *MockCaptureHandle) ReadPacket() ([]byte, error) {
	m.mu.Lock()
	if m.Closed {
		m.mu.Unlock()
		return nil, errors.New("handle closed")
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.mu.Unlock()
		return nil, err
	}
	if m.ReadIndex < len(m.Frames) {
		frame := m.Frames[m.ReadIndex]
		m.ReadIndex++
		m.mu.Unlock()
		return frame, nil
	}
	wait := m.IdleWait
	m.mu.Unlock()

	time.Sleep(wait)
	return nil, ErrReadTimeout
}

// Close marks the handle as closed.
func (m *MockCaptureHandle) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// AddFrame appends a frame to the mock handle.
func (m *MockCaptureHandle) AddFrame(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, frame)
}

// IsClosed reports whether Close was called.
func (m *MockCaptureHandle) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}

// MockHandleOpener implements HandleOpener for testing.
type MockHandleOpener struct {
	mu sync.Mutex

	// Handle is the handle to return from Open.
	Handle *MockCaptureHandle

	// OpenError is returned by Open if set.
	OpenError error

	// OpenedDevice records the device passed to Open.
	OpenedDevice string

	// OpenedPort records the port passed to Open.
	OpenedPort int

	// OpenCalls records the number of Open calls.
	OpenCalls int
}

// NewMockHandleOpener creates a new MockHandleOpener returning handle.
func NewMockHandleOpener(handle *MockCaptureHandle) *MockHandleOpener {
	return &MockHandleOpener{Handle: handle}
}

// Open records the call and returns the configured handle or error.
func (o *MockHandleOpener) Open(device string, port int) (CaptureHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.OpenCalls++
	o.OpenedDevice = device
	o.OpenedPort = port
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	return o.Handle, nil
}

// MockPortGuard implements PortGuard for testing.
type MockPortGuard struct {
	mu sync.Mutex

	// BindError is returned by Bind if set.
	BindError error

	// BoundPort records the port passed to Bind.
	BoundPort int

	// Released indicates whether the returned closer was closed.
	Released bool
}

// Bind records the port and returns a closer tracking release.
func (g *MockPortGuard) Bind(port int) (io.Closer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.BoundPort = port
	if g.BindError != nil {
		return nil, g.BindError
	}
	return mockGuardCloser{g}, nil
}

// IsReleased reports whether the guard socket was closed.
func (g *MockPortGuard) IsReleased() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Released
}

type mockGuardCloser struct{ g *MockPortGuard }

func (c mockGuardCloser) Close() error {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	c.g.Released = true
	return nil
}
