package network

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldscale/iqstream/internal/iq/ring"
)

// buildUDPFrame assembles a minimal Ethernet/IPv4/UDP frame carrying payload
// to dstPort, the shape a live capture handle would deliver.
func buildUDPFrame(dstPort uint16, payload []byte) []byte {
	frame := make([]byte, 14+20+8+len(payload))
	binary.BigEndian.PutUint16(frame[12:], 0x0800)
	frame[14] = 0x45
	frame[14+9] = 17
	udp := frame[14+20:]
	binary.BigEndian.PutUint16(udp[0:], 40000)
	binary.BigEndian.PutUint16(udp[2:], dstPort)
	binary.BigEndian.PutUint16(udp[4:], uint16(8+len(payload)))
	copy(udp[8:], payload)
	return frame
}

// MockSessionStats implements CaptureStatsInterface for testing.
type MockSessionStats struct {
	mu        sync.Mutex
	packets   int
	bytes     int
	overflows int
}

func (m *MockSessionStats) AddPacket(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets++
	m.bytes += bytes
}

func (m *MockSessionStats) AddOverflow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overflows++
}

func (m *MockSessionStats) Counts() (packets, bytes, overflows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packets, m.bytes, m.overflows
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func newTestRing(t *testing.T, capacity int) *ring.Buffer {
	t.Helper()
	buf, err := ring.New(capacity)
	if err != nil {
		t.Fatalf("ring.New failed: %v", err)
	}
	return buf
}

func TestNewSession_Validation(t *testing.T) {
	buf := newTestRing(t, 64)

	if _, err := NewSession(SessionConfig{Port: 2368, Ring: buf}); err == nil {
		t.Error("expected error for missing device")
	}
	if _, err := NewSession(SessionConfig{Device: "eth0", Port: 0, Ring: buf}); err == nil {
		t.Error("expected error for port 0")
	}
	if _, err := NewSession(SessionConfig{Device: "eth0", Port: 70000, Ring: buf}); err == nil {
		t.Error("expected error for out-of-range port")
	}
	if _, err := NewSession(SessionConfig{Device: "eth0", Port: 2368}); err == nil {
		t.Error("expected error for missing ring buffer")
	}
}

func TestSession_Lifecycle(t *testing.T) {
	handle := NewMockCaptureHandle(nil)
	opener := NewMockHandleOpener(handle)
	guard := &MockPortGuard{}

	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   newTestRing(t, 64),
		Opener: opener,
		Guard:  guard,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if got := session.State(); got != Idle {
		t.Errorf("initial state = %v, want Idle", got)
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := session.State(); got != Capturing {
		t.Errorf("state after Start = %v, want Capturing", got)
	}
	if opener.OpenedDevice != "mock0" || opener.OpenedPort != 7777 {
		t.Errorf("opener saw %s/%d, want mock0/7777", opener.OpenedDevice, opener.OpenedPort)
	}
	if guard.BoundPort != 7777 {
		t.Errorf("guard bound port %d, want 7777", guard.BoundPort)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := session.State(); got != Idle {
		t.Errorf("state after Stop = %v, want Idle", got)
	}
	if !handle.IsClosed() {
		t.Error("capture handle not closed after Stop")
	}
	if !guard.IsReleased() {
		t.Error("ICMP guard socket not released after Stop")
	}
}

func TestSession_CapturesMatchingPayload(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	handle := NewMockCaptureHandle([][]byte{buildUDPFrame(7777, payload)})
	stats := &MockSessionStats{}
	buf := newTestRing(t, 64)

	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   buf,
		Stats:  stats,
		Opener: NewMockHandleOpener(handle),
		Guard:  &MockPortGuard{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer session.Stop()

	if !waitFor(t, time.Second, func() bool { return buf.Available() == len(payload) }) {
		t.Fatalf("payload never reached the ring: available = %d", buf.Available())
	}
	packets, bytes, _ := stats.Counts()
	if packets != 1 || bytes != len(payload) {
		t.Errorf("stats = %d packets / %d bytes, want 1 / %d", packets, bytes, len(payload))
	}
}

// TestSession_PortFilter covers the isolation property: a datagram addressed
// to another port never increases ring occupancy.
func TestSession_PortFilter(t *testing.T) {
	handle := NewMockCaptureHandle([][]byte{
		buildUDPFrame(9999, []byte{1, 2, 3, 4}),
		buildUDPFrame(9999, []byte{5, 6}),
	})
	buf := newTestRing(t, 64)

	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   buf,
		Opener: NewMockHandleOpener(handle),
		Guard:  &MockPortGuard{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give the loop time to chew through both frames, then check nothing
	// landed.
	time.Sleep(50 * time.Millisecond)
	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := buf.Available(); got != 0 {
		t.Errorf("ring occupancy = %d after mismatched-port frames, want 0", got)
	}
}

func TestSession_OverflowDropsAndCounts(t *testing.T) {
	handle := NewMockCaptureHandle([][]byte{buildUDPFrame(7777, []byte{1, 2, 3, 4})})
	stats := &MockSessionStats{}
	buf := newTestRing(t, 2) // too small for the 4-byte payload

	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   buf,
		Stats:  stats,
		Opener: NewMockHandleOpener(handle),
		Guard:  &MockPortGuard{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer session.Stop()

	if !waitFor(t, time.Second, func() bool {
		_, _, overflows := stats.Counts()
		return overflows == 1
	}) {
		t.Fatal("overflow never counted")
	}
	if got := buf.Available(); got != 0 {
		t.Errorf("ring occupancy = %d after dropped payload, want 0", got)
	}
	if got := buf.Overflows(); got != 1 {
		t.Errorf("ring overflow counter = %d, want 1", got)
	}
}

func TestSession_OpenFailure(t *testing.T) {
	opener := NewMockHandleOpener(nil)
	opener.OpenError = errors.New("no such device")
	guard := &MockPortGuard{}

	session, err := NewSession(SessionConfig{
		Device: "missing0",
		Port:   7777,
		Ring:   newTestRing(t, 64),
		Opener: opener,
		Guard:  guard,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if err := session.Start(); err == nil {
		t.Fatal("Start must fail when the device cannot be opened")
	}
	if got := session.State(); got != Idle {
		t.Errorf("state after failed Start = %v, want Idle", got)
	}
	if guard.BoundPort != 0 {
		t.Error("guard socket must not be bound when the device open fails")
	}
}

func TestSession_BindFailure(t *testing.T) {
	handle := NewMockCaptureHandle(nil)
	guard := &MockPortGuard{BindError: errors.New("address already in use")}

	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   newTestRing(t, 64),
		Opener: NewMockHandleOpener(handle),
		Guard:  guard,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if err := session.Start(); err == nil {
		t.Fatal("Start must fail when the guard socket cannot bind")
	}
	if got := session.State(); got != Idle {
		t.Errorf("state after failed Start = %v, want Idle", got)
	}
	if !handle.IsClosed() {
		t.Error("capture handle must be closed when the guard bind fails")
	}
}

func TestSession_DoubleStart(t *testing.T) {
	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   newTestRing(t, 64),
		Opener: NewMockHandleOpener(NewMockCaptureHandle(nil)),
		Guard:  &MockPortGuard{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer session.Stop()

	if err := session.Start(); err == nil {
		t.Error("second Start must fail while capturing")
	}
}

func TestSession_StopWhileIdle(t *testing.T) {
	session, err := NewSession(SessionConfig{
		Device: "mock0",
		Port:   7777,
		Ring:   newTestRing(t, 64),
		Opener: NewMockHandleOpener(NewMockCaptureHandle(nil)),
		Guard:  &MockPortGuard{},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Errorf("Stop while idle = %v, want nil", err)
	}
}

// TestSession_StopTimeout pins a capture goroutine inside a long bounded
// wait; Stop must give up after its timeout and report the leak.
func TestSession_StopTimeout(t *testing.T) {
	handle := NewMockCaptureHandle(nil)
	handle.IdleWait = 500 * time.Millisecond

	session, err := NewSession(SessionConfig{
		Device:      "mock0",
		Port:        7777,
		Ring:        newTestRing(t, 64),
		Opener:      NewMockHandleOpener(handle),
		Guard:       &MockPortGuard{},
		StopTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the loop settle into its simulated packet wait.
	time.Sleep(10 * time.Millisecond)

	if err := session.Stop(); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("Stop = %v, want ErrStopTimeout", err)
	}
	if got := session.State(); got != Capturing {
		t.Errorf("state after failed Stop = %v, want Capturing (leak flagged)", got)
	}

	// The goroutine eventually notices the break signal; a second Stop
	// then succeeds.
	if !waitFor(t, 2*time.Second, func() bool { return session.Stop() == nil }) {
		t.Error("session never stopped after the goroutine drained")
	}
}

func TestNoopStats(t *testing.T) {
	var s noopStats
	s.AddPacket(100)
	s.AddOverflow()
}
