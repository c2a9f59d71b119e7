package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/xpanvictor/goocast/pkg/ssdp"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

const testTarget = "urn:cast-ocast-org:service:cast:1"

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn is an in-memory probe socket. Responses pushed into inbox come
// out of ReadFrom; probes written by the engine are recorded.
type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	closeCh  chan struct{}
	deadline time.Time
	writes   [][]byte
	writeErr error

	inbox chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		closeCh: make(chan struct{}),
		inbox:   make(chan []byte, 16),
	}
}

func (c *fakeConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.closed {
		return 0, net.ErrClosed
	}
	c.writes = append(c.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.deadline
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, nil, net.ErrClosed
	}
	var timer <-chan time.Time
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		timer = time.After(wait)
	}
	select {
	case payload := <-c.inbox:
		n := copy(b, payload)
		return n, &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 1900}, nil
	case <-timer:
		return 0, nil, timeoutError{}
	case <-c.closeCh:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) firstWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) == 0 {
		return nil
	}
	return c.writes[0]
}

// fakeResolver serves device descriptions by location.
type fakeResolver struct {
	mu      sync.Mutex
	devices map[string]upnp.Device
	errs    map[string]error
	calls   map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		devices: make(map[string]upnp.Device),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (r *fakeResolver) DeviceDescription(_ context.Context, location string) (*upnp.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[location]++
	if err := r.errs[location]; err != nil {
		return nil, err
	}
	dev, ok := r.devices[location]
	if !ok {
		return nil, fmt.Errorf("no description at %s", location)
	}
	return &dev, nil
}

func (r *fakeResolver) set(location string, dev upnp.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[location] = dev
	delete(r.errs, location)
}

func (r *fakeResolver) fail(location string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[location] = err
}

func (r *fakeResolver) callCount(location string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[location]
}

// discoveryRecorder captures listener callbacks.
type discoveryRecorder struct {
	mu         sync.Mutex
	discovered []upnp.Device
	lost       []upnp.Device
	updated    []upnp.Device
	stops      []error
}

func (r *discoveryRecorder) OnDeviceDiscovered(dev upnp.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovered = append(r.discovered, dev)
}

func (r *discoveryRecorder) OnDeviceLost(dev upnp.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = append(r.lost, dev)
}

func (r *discoveryRecorder) OnDeviceUpdated(dev upnp.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, dev)
}

func (r *discoveryRecorder) OnDiscoveryStopped(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, err)
}

func (r *discoveryRecorder) counts() (discovered, lost, updated, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.discovered), len(r.lost), len(r.updated), len(r.stops)
}

func newTestService(t *testing.T) (*Service, *fakeConn, *fakeResolver, *discoveryRecorder) {
	t.Helper()
	svc := NewService(nil)
	conn := newFakeConn()
	resolver := newFakeResolver()
	recorder := &discoveryRecorder{}
	svc.listenPacket = func() (packetConn, error) { return conn, nil }
	svc.resolver = resolver
	svc.SetListener(recorder)
	svc.RegisterSearchSignature(testTarget)
	return svc, conn, resolver, recorder
}

func respond(conn *fakeConn, id, location string) {
	conn.inbox <- ssdp.SearchResponse{
		Location:     location,
		Server:       "fake-device",
		SearchTarget: testTarget,
		USN:          "uuid:" + id + "::" + testTarget,
	}.Bytes()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDiscoveryFlow(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{
		ID:             "device-1",
		ApplicationURL: "http://10.0.0.5:8008/apps",
		FriendlyName:   "Living Room",
		Manufacturer:   "Orange SA",
		ModelName:      "stick",
	})

	if !svc.Resume() {
		t.Fatal("Failed to resume discovery")
	}
	if svc.State() != StateRunning {
		t.Errorf("Expected state running, got %s", svc.State())
	}

	// probes hit the wire, twice per signature
	waitFor(t, func() bool { return conn.writeCount() >= probeRepeat }, "probes never sent")
	req, err := ssdp.ParseSearchRequest(conn.firstWrite())
	if err != nil {
		t.Fatalf("Probe is not a search request: %v", err)
	}
	if req.SearchTarget != testTarget {
		t.Errorf("Expected search target %q, got %q", testTarget, req.SearchTarget)
	}

	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	devices := svc.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 live device, got %d", len(devices))
	}
	if devices[0].FriendlyName != "Living Room" {
		t.Errorf("Expected the resolved description, got %+v", devices[0])
	}

	// further responses only refresh the booking
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	time.Sleep(30 * time.Millisecond)
	if d, _, _, _ := recorder.counts(); d != 1 {
		t.Errorf("Expected no duplicate discovery, got %d", d)
	}
	if n := resolver.callCount("http://10.0.0.5/dd.xml"); n != 1 {
		t.Errorf("Expected a single description fetch, got %d", n)
	}
}

func TestDiscoveryUSNWinsOverBodyUDN(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	// the description body disagrees with the probe's USN
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{
		ID:             "body-id",
		ApplicationURL: "http://10.0.0.5:8008/apps",
		FriendlyName:   "Living Room",
	})

	svc.Resume()
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	if svc.Devices()[0].ID != "device-1" {
		t.Errorf("Expected the USN identity to win, got %q", svc.Devices()[0].ID)
	}
}

func TestDiscoveryRoundEviction(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Living Room"})

	svc.Resume()
	waitFor(t, func() bool { return conn.writeCount() >= probeRepeat }, "first round never probed")
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	// one silent round is tolerated
	svc.probeRound(conn)
	if _, lost, _, _ := recorder.counts(); lost != 0 {
		t.Fatalf("Expected no eviction after one silent round, got %d", lost)
	}
	if len(svc.Devices()) != 1 {
		t.Fatalf("Expected the device to survive one silent round")
	}

	// the second silent round evicts
	svc.probeRound(conn)
	if _, lost, _, _ := recorder.counts(); lost != 1 {
		t.Errorf("Expected the device to be evicted, got %d lost", lost)
	}
	if len(svc.Devices()) != 0 {
		t.Errorf("Expected no live devices, got %d", len(svc.Devices()))
	}
}

func TestDiscoveryLocationChange(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Living Room"})
	resolver.set("http://10.0.0.9/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Bedroom"})

	svc.Resume()
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	// the device answers from a new description location
	respond(conn, "device-1", "http://10.0.0.9/dd.xml")
	waitFor(t, func() bool { _, _, u, _ := recorder.counts(); return u == 1 }, "device never updated")

	devices := svc.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 live device, got %d", len(devices))
	}
	if devices[0].FriendlyName != "Bedroom" {
		t.Errorf("Expected the refreshed description, got %q", devices[0].FriendlyName)
	}

	// the new location is now the booked one
	respond(conn, "device-1", "http://10.0.0.9/dd.xml")
	time.Sleep(30 * time.Millisecond)
	if n := resolver.callCount("http://10.0.0.9/dd.xml"); n != 1 {
		t.Errorf("Expected no refetch for the booked location, got %d", n)
	}
}

func TestDiscoveryBadDescriptionRetried(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	resolver.fail("http://10.0.0.5/dd.xml", errors.New("connection refused"))

	svc.Resume()
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { return resolver.callCount("http://10.0.0.5/dd.xml") == 1 }, "description never fetched")

	time.Sleep(20 * time.Millisecond)
	if d, _, _, _ := recorder.counts(); d != 0 {
		t.Fatalf("Expected no discovery for a failed description, got %d", d)
	}

	// once the device serves its description, the next response books it
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Living Room"})
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered after retry")
}

func TestDiscoveryPauseResume(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	defer svc.Stop()
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Living Room"})

	svc.Resume()
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	if !svc.Pause() {
		t.Fatal("Failed to pause")
	}
	if svc.State() != StatePaused {
		t.Errorf("Expected state paused, got %s", svc.State())
	}
	if svc.Pause() {
		t.Error("Expected pause to fail while paused")
	}

	// the device set survives the pause
	if len(svc.Devices()) != 1 {
		t.Errorf("Expected the device set to survive a pause, got %d", len(svc.Devices()))
	}

	// rounds are skipped while paused
	before := conn.writeCount()
	svc.probeRound(conn)
	if conn.writeCount() != before {
		t.Error("Expected no probes while paused")
	}

	if !svc.Resume() {
		t.Fatal("Failed to resume from pause")
	}
	if svc.State() != StateRunning {
		t.Errorf("Expected state running, got %s", svc.State())
	}
	if svc.Resume() {
		t.Error("Expected resume to fail while running")
	}
	waitFor(t, func() bool { return conn.writeCount() > before }, "probing never picked back up")
}

func TestDiscoveryStop(t *testing.T) {
	svc, conn, resolver, recorder := newTestService(t)
	resolver.set("http://10.0.0.5/dd.xml", upnp.Device{ID: "device-1", FriendlyName: "Living Room"})

	svc.Resume()
	respond(conn, "device-1", "http://10.0.0.5/dd.xml")
	waitFor(t, func() bool { d, _, _, _ := recorder.counts(); return d == 1 }, "device never discovered")

	svc.Stop()
	if svc.State() != StateStopped {
		t.Errorf("Expected state stopped, got %s", svc.State())
	}
	if len(svc.Devices()) != 0 {
		t.Errorf("Expected the device set to clear, got %d", len(svc.Devices()))
	}
	_, lost, _, stops := recorder.counts()
	if lost != 1 {
		t.Errorf("Expected a lost notification for the cleared device, got %d", lost)
	}
	if stops != 1 {
		t.Errorf("Expected one stop notification, got %d", stops)
	}
	if recorder.stops[0] != nil {
		t.Errorf("Expected a nil cause for a requested stop, got %v", recorder.stops[0])
	}

	// stopping again changes nothing
	svc.Stop()
	if _, _, _, stops := recorder.counts(); stops != 1 {
		t.Errorf("Expected no second stop notification, got %d", stops)
	}
}

func TestDiscoverySocketFailureForcesStop(t *testing.T) {
	svc, conn, _, recorder := newTestService(t)

	svc.Resume()
	waitFor(t, func() bool { return conn.writeCount() >= probeRepeat }, "probes never sent")

	conn.mu.Lock()
	conn.writeErr = errors.New("network is down")
	conn.mu.Unlock()
	svc.probeRound(conn)

	waitFor(t, func() bool { return svc.State() == StateStopped }, "engine never stopped")
	waitFor(t, func() bool { _, _, _, stops := recorder.counts(); return stops == 1 }, "stop never reported")
	recorder.mu.Lock()
	cause := recorder.stops[0]
	recorder.mu.Unlock()
	if cause == nil {
		t.Error("Expected the stop cause to carry the socket error")
	}
}

func TestDiscoverySetInterval(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if svc.Interval() != DefaultInterval {
		t.Errorf("Expected the default interval, got %v", svc.Interval())
	}
	svc.SetInterval(time.Second)
	if svc.Interval() != MinInterval {
		t.Errorf("Expected the interval to clamp to %v, got %v", MinInterval, svc.Interval())
	}
	svc.SetInterval(10 * time.Second)
	if svc.Interval() != 10*time.Second {
		t.Errorf("Expected 10s, got %v", svc.Interval())
	}
}

func TestDiscoverySetIntervalKicksRound(t *testing.T) {
	svc, conn, _, _ := newTestService(t)
	defer svc.Stop()

	svc.Resume()
	waitFor(t, func() bool { return conn.writeCount() >= probeRepeat }, "probes never sent")

	before := conn.writeCount()
	svc.SetInterval(7 * time.Second)
	waitFor(t, func() bool { return conn.writeCount() > before }, "interval change never kicked a round")
}

func TestDiscoveryResumeSocketFailure(t *testing.T) {
	svc := NewService(nil)
	svc.listenPacket = func() (packetConn, error) { return nil, errors.New("no route") }
	if svc.Resume() {
		t.Error("Expected resume to fail when the socket cannot open")
	}
	if svc.State() != StateStopped {
		t.Errorf("Expected state stopped, got %s", svc.State())
	}
}
