package ocast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xpanvictor/goocast/pkg/discovery"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

// fakeDiscoverer records what the center asks of its discovery engine.
type fakeDiscoverer struct {
	listener   discovery.Listener
	signatures []string
	resumes    int
	pauses     int
	stops      int
	interval   time.Duration
}

func (f *fakeDiscoverer) SetListener(l discovery.Listener)  { f.listener = l }
func (f *fakeDiscoverer) RegisterSearchSignature(st string) { f.signatures = append(f.signatures, st) }
func (f *fakeDiscoverer) Resume() bool                      { f.resumes++; return true }
func (f *fakeDiscoverer) Pause() bool                       { f.pauses++; return true }
func (f *fakeDiscoverer) Stop()                             { f.stops++ }
func (f *fakeDiscoverer) SetInterval(d time.Duration)       { f.interval = d }

// lifecycleRecorder captures device lifecycle notifications.
type lifecycleRecorder struct {
	mu          sync.Mutex
	added       []Device
	removed     []Device
	changed     []Device
	disconnects []error
	stops       []error
}

func (r *lifecycleRecorder) OnDeviceAdded(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, d)
}

func (r *lifecycleRecorder) OnDeviceRemoved(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, d)
}

func (r *lifecycleRecorder) OnDeviceChanged(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, d)
}

func (r *lifecycleRecorder) OnDeviceDisconnected(_ Device, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, err)
}

func (r *lifecycleRecorder) OnDiscoveryStopped(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, err)
}

func testDescriptor(id, name string) upnp.Device {
	return upnp.Device{
		ID:             id,
		ApplicationURL: "http://10.0.0.5:8008/apps",
		FriendlyName:   name,
		Manufacturer:   ReferenceManufacturer,
		ModelName:      "test-stick",
	}
}

func newTestCenter(t *testing.T) (*DeviceCenter, *fakeDiscoverer, *lifecycleRecorder) {
	t.Helper()
	disc := &fakeDiscoverer{}
	center := NewDeviceCenter(disc, nil)
	if disc.listener == nil {
		t.Fatal("Expected the center to install itself as discovery listener")
	}
	if err := center.RegisterDevice(ReferenceDeviceType()); err != nil {
		t.Fatalf("Failed to register device type: %v", err)
	}
	recorder := &lifecycleRecorder{}
	center.AddDeviceListener(recorder)
	return center, disc, recorder
}

func TestCenterRegisterDeviceValidation(t *testing.T) {
	center := NewDeviceCenter(&fakeDiscoverer{}, nil)
	if err := center.RegisterDevice(DeviceType{}); err == nil {
		t.Error("Expected an error for an empty device type")
	}
	if err := center.RegisterDevice(DeviceType{Manufacturer: "Acme", SearchTarget: "urn:acme"}); err == nil {
		t.Error("Expected an error for a device type without factory")
	}
}

func TestCenterRegistersSearchSignature(t *testing.T) {
	_, disc, _ := newTestCenter(t)
	if len(disc.signatures) != 1 || disc.signatures[0] != ReferenceSearchTarget {
		t.Errorf("Expected the reference search target to be registered, got %v", disc.signatures)
	}
}

func TestCenterAddsDiscoveredDevice(t *testing.T) {
	center, disc, recorder := newTestCenter(t)

	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))

	devices := center.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 managed device, got %d", len(devices))
	}
	if devices[0].UpnpDevice().ID != "device-1" {
		t.Errorf("Expected device-1, got %q", devices[0].UpnpDevice().ID)
	}
	if len(recorder.added) != 1 {
		t.Fatalf("Expected 1 added notification, got %d", len(recorder.added))
	}

	// rediscovery of a managed device refreshes instead of duplicating
	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room TV"))
	if len(center.Devices()) != 1 {
		t.Errorf("Expected still 1 managed device, got %d", len(center.Devices()))
	}
	if len(recorder.added) != 1 {
		t.Errorf("Expected no second added notification, got %d", len(recorder.added))
	}
	if len(recorder.changed) != 1 {
		t.Errorf("Expected a changed notification, got %d", len(recorder.changed))
	}
	if devices[0].UpnpDevice().FriendlyName != "Living Room TV" {
		t.Errorf("Expected the descriptor swap, got %q", devices[0].UpnpDevice().FriendlyName)
	}
}

func TestCenterIgnoresUnknownManufacturer(t *testing.T) {
	center, disc, recorder := newTestCenter(t)

	desc := testDescriptor("device-9", "Mystery Box")
	desc.Manufacturer = "Acme Corp"
	disc.listener.OnDeviceDiscovered(desc)

	if len(center.Devices()) != 0 {
		t.Errorf("Expected no managed device, got %d", len(center.Devices()))
	}
	if len(recorder.added) != 0 {
		t.Errorf("Expected no added notification, got %d", len(recorder.added))
	}
}

func TestCenterDeviceUpdated(t *testing.T) {
	center, disc, recorder := newTestCenter(t)
	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))

	disc.listener.OnDeviceUpdated(testDescriptor("device-1", "Bedroom"))
	if len(recorder.changed) != 1 {
		t.Fatalf("Expected 1 changed notification, got %d", len(recorder.changed))
	}
	if center.Devices()[0].UpnpDevice().FriendlyName != "Bedroom" {
		t.Errorf("Expected the descriptor swap, got %q", center.Devices()[0].UpnpDevice().FriendlyName)
	}

	// an update for an unmanaged device behaves like a discovery
	disc.listener.OnDeviceUpdated(testDescriptor("device-2", "Kitchen"))
	if len(recorder.added) != 2 {
		t.Errorf("Expected the unknown update to add a device, got %d added", len(recorder.added))
	}
	if len(center.Devices()) != 2 {
		t.Errorf("Expected 2 managed devices, got %d", len(center.Devices()))
	}
}

func TestCenterDeviceLost(t *testing.T) {
	center, disc, recorder := newTestCenter(t)
	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))

	disc.listener.OnDeviceLost(testDescriptor("device-1", "Living Room"))
	if len(center.Devices()) != 0 {
		t.Errorf("Expected no managed devices, got %d", len(center.Devices()))
	}
	if len(recorder.removed) != 1 {
		t.Fatalf("Expected 1 removed notification, got %d", len(recorder.removed))
	}

	// the center detaches itself from the dropped session
	dropped := recorder.removed[0].(*ReferenceDevice)
	dropped.mu.Lock()
	attached := dropped.eventListener != nil || dropped.deviceListener != nil
	dropped.mu.Unlock()
	if attached {
		t.Error("Expected listeners to be detached from the removed device")
	}

	// losing an unknown device is a no-op
	disc.listener.OnDeviceLost(testDescriptor("device-7", "Ghost"))
	if len(recorder.removed) != 1 {
		t.Errorf("Expected no extra removed notification, got %d", len(recorder.removed))
	}
}

func TestCenterListenerDedup(t *testing.T) {
	center, disc, recorder := newTestCenter(t)
	center.AddDeviceListener(recorder) // second add is a no-op

	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))
	if len(recorder.added) != 1 {
		t.Errorf("Expected a single notification for a deduplicated listener, got %d", len(recorder.added))
	}

	center.RemoveDeviceListener(recorder)
	disc.listener.OnDeviceDiscovered(testDescriptor("device-2", "Bedroom"))
	if len(recorder.added) != 1 {
		t.Errorf("Expected no notification after removal, got %d", len(recorder.added))
	}
}

func TestCenterEventFanOut(t *testing.T) {
	center, disc, _ := newTestCenter(t)
	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))
	dev := center.Devices()[0]

	recorder := newEventRecorder()
	center.AddEventListener(recorder)
	center.AddEventListener(recorder) // dedup

	center.OnPlaybackStatus(dev, PlaybackStatus{State: PlayerStatePlaying, Position: 3})
	center.OnMetadataChanged(dev, Metadata{Title: "Clip"})
	center.OnUpdateStatus(dev, UpdateStatus{State: UpdateStateDownloading, Progress: 10})
	center.OnCustomEvent(dev, "com.vendor.custom", "ping", nil)

	recorder.mu.Lock()
	counts := []int{len(recorder.playbacks), len(recorder.metadatas), len(recorder.updates), len(recorder.customs)}
	recorder.mu.Unlock()
	for i, n := range counts {
		if n != 1 {
			t.Errorf("Expected 1 notification in slot %d, got %d", i, n)
		}
	}

	center.RemoveEventListener(recorder)
	center.OnPlaybackStatus(dev, PlaybackStatus{})
	recorder.mu.Lock()
	playbacks := len(recorder.playbacks)
	recorder.mu.Unlock()
	if playbacks != 1 {
		t.Errorf("Expected no notification after removal, got %d", playbacks)
	}
}

func TestCenterDisconnectFanOut(t *testing.T) {
	center, disc, recorder := newTestCenter(t)
	disc.listener.OnDeviceDiscovered(testDescriptor("device-1", "Living Room"))
	dev := center.Devices()[0]

	cause := errors.New("channel lost")
	center.OnDeviceDisconnected(dev, cause)
	if len(recorder.disconnects) != 1 || !errors.Is(recorder.disconnects[0], cause) {
		t.Errorf("Expected the disconnect to fan out, got %v", recorder.disconnects)
	}

	center.OnDiscoveryStopped(nil)
	if len(recorder.stops) != 1 {
		t.Errorf("Expected the discovery stop to fan out, got %d", len(recorder.stops))
	}
}

func TestCenterDiscoveryDelegation(t *testing.T) {
	center, disc, _ := newTestCenter(t)

	if !center.ResumeDiscovery() {
		t.Error("Expected resume to pass through")
	}
	center.PauseDiscovery()
	center.StopDiscovery()
	center.SetDiscoveryInterval(42 * time.Second)

	if disc.resumes != 1 || disc.pauses != 1 || disc.stops != 1 {
		t.Errorf("Expected 1/1/1 delegations, got %d/%d/%d", disc.resumes, disc.pauses, disc.stops)
	}
	if disc.interval != 42*time.Second {
		t.Errorf("Expected the interval to pass through, got %v", disc.interval)
	}
}
