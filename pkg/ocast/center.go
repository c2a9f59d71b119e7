package ocast

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/discovery"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

// Discoverer is the discovery engine surface the center drives. Satisfied
// by *discovery.Service.
type Discoverer interface {
	SetListener(l discovery.Listener)
	RegisterSearchSignature(searchTarget string)
	Resume() bool
	Pause() bool
	Stop()
	SetInterval(d time.Duration)
}

// DeviceCenter is the application-facing facade: it owns the mapping from
// discovered descriptors to live device sessions and fans lifecycle and
// protocol notifications out to registered listeners.
type DeviceCenter struct {
	logger *Logger.Logger
	disc   Discoverer

	mu              sync.RWMutex
	factories       map[string]DeviceFactory
	devices         map[string]Device
	deviceListeners []DeviceListener
	eventListeners  []EventListener
}

var (
	_ discovery.Listener = (*DeviceCenter)(nil)
	_ DeviceListener     = (*DeviceCenter)(nil)
	_ EventListener      = (*DeviceCenter)(nil)
)

// NewDeviceCenter wires a center to its discovery engine and installs
// itself as the engine's listener.
func NewDeviceCenter(disc Discoverer, logger *Logger.Logger) *DeviceCenter {
	c := &DeviceCenter{
		logger:    Logger.OrNop(logger),
		disc:      disc,
		factories: make(map[string]DeviceFactory),
		devices:   make(map[string]Device),
	}
	disc.SetListener(c)
	return c
}

// RegisterDevice associates a manufacturer signature with the factory that
// drives its devices and adds the matching search target to discovery.
func (c *DeviceCenter) RegisterDevice(dt DeviceType) error {
	if dt.Manufacturer == "" || dt.SearchTarget == "" || dt.New == nil {
		return fmt.Errorf("ocast: device type needs manufacturer, search target and factory")
	}
	c.mu.Lock()
	c.factories[dt.Manufacturer] = dt.New
	c.mu.Unlock()
	c.disc.RegisterSearchSignature(dt.SearchTarget)
	return nil
}

// AddDeviceListener subscribes a listener to device lifecycle
// notifications. Adding the same listener twice is a no-op.
func (c *DeviceCenter) AddDeviceListener(l DeviceListener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cand := range c.deviceListeners {
		if cand == l {
			return
		}
	}
	c.deviceListeners = append(c.deviceListeners, l)
}

// RemoveDeviceListener unsubscribes a listener.
func (c *DeviceCenter) RemoveDeviceListener(l DeviceListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.deviceListeners {
		if cand == l {
			c.deviceListeners = append(c.deviceListeners[:i], c.deviceListeners[i+1:]...)
			return
		}
	}
}

// AddEventListener subscribes a listener to protocol events from every
// managed device. Adding the same listener twice is a no-op.
func (c *DeviceCenter) AddEventListener(l EventListener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cand := range c.eventListeners {
		if cand == l {
			return
		}
	}
	c.eventListeners = append(c.eventListeners, l)
}

// RemoveEventListener unsubscribes a listener.
func (c *DeviceCenter) RemoveEventListener(l EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.eventListeners {
		if cand == l {
			c.eventListeners = append(c.eventListeners[:i], c.eventListeners[i+1:]...)
			return
		}
	}
}

// ResumeDiscovery starts or resumes the probe cycle.
func (c *DeviceCenter) ResumeDiscovery() bool {
	return c.disc.Resume()
}

// PauseDiscovery suspends probing while keeping the device set.
func (c *DeviceCenter) PauseDiscovery() bool {
	return c.disc.Pause()
}

// StopDiscovery halts discovery; every managed device is removed through
// the engine's notifications.
func (c *DeviceCenter) StopDiscovery() {
	c.disc.Stop()
}

// SetDiscoveryInterval changes the probe period.
func (c *DeviceCenter) SetDiscoveryInterval(d time.Duration) {
	c.disc.SetInterval(d)
}

// Devices snapshots the managed device sessions.
func (c *DeviceCenter) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	devices := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		devices = append(devices, d)
	}
	return devices
}

// OnDeviceDiscovered implements discovery.Listener: build the session for
// a new descriptor through the factory registered for its manufacturer.
func (c *DeviceCenter) OnDeviceDiscovered(desc upnp.Device) {
	c.mu.Lock()
	factory, ok := c.factories[desc.Manufacturer]
	if !ok {
		c.mu.Unlock()
		c.logger.Errorf("device center: no device type registered for manufacturer %q (device %s)", desc.Manufacturer, desc.ID)
		return
	}
	if existing, ok := c.devices[desc.ID]; ok {
		c.mu.Unlock()
		existing.SetUpnpDevice(desc)
		c.OnDeviceChanged(existing)
		return
	}
	dev := factory(desc, c.logger)
	dev.SetDeviceListener(c)
	dev.SetEventListener(c)
	c.devices[desc.ID] = dev
	c.mu.Unlock()

	c.logger.Infof("device center: added %s (%s)", desc.FriendlyName, desc.ID)
	c.OnDeviceAdded(dev)
}

// OnDeviceLost implements discovery.Listener: drop the session of an
// evicted descriptor and detach it after the removal fan-out.
func (c *DeviceCenter) OnDeviceLost(desc upnp.Device) {
	c.mu.Lock()
	dev, ok := c.devices[desc.ID]
	if ok {
		delete(c.devices, desc.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.logger.Infof("device center: removed %s (%s)", desc.FriendlyName, desc.ID)
	c.OnDeviceRemoved(dev)
	dev.SetEventListener(nil)
	dev.SetDeviceListener(nil)
}

// OnDeviceUpdated implements discovery.Listener: swap the descriptor on
// the live session. An update for an unmanaged descriptor is treated as a
// discovery, which covers a factory registered after the first sighting.
func (c *DeviceCenter) OnDeviceUpdated(desc upnp.Device) {
	c.mu.RLock()
	dev, ok := c.devices[desc.ID]
	c.mu.RUnlock()
	if !ok {
		c.OnDeviceDiscovered(desc)
		return
	}
	dev.SetUpnpDevice(desc)
	c.OnDeviceChanged(dev)
}

// OnDeviceAdded fans a device addition out to the lifecycle listeners.
func (c *DeviceCenter) OnDeviceAdded(d Device) {
	for _, l := range c.snapshotDeviceListeners() {
		l.OnDeviceAdded(d)
	}
}

// OnDeviceRemoved fans a device removal out to the lifecycle listeners.
func (c *DeviceCenter) OnDeviceRemoved(d Device) {
	for _, l := range c.snapshotDeviceListeners() {
		l.OnDeviceRemoved(d)
	}
}

// OnDeviceChanged fans a descriptor change out to the lifecycle listeners.
func (c *DeviceCenter) OnDeviceChanged(d Device) {
	for _, l := range c.snapshotDeviceListeners() {
		l.OnDeviceChanged(d)
	}
}

// OnDeviceDisconnected receives unsolicited channel losses from managed
// devices and fans them out.
func (c *DeviceCenter) OnDeviceDisconnected(d Device, err error) {
	for _, l := range c.snapshotDeviceListeners() {
		l.OnDeviceDisconnected(d, err)
	}
}

// OnDiscoveryStopped implements discovery.Listener and fans the stop out
// to the lifecycle listeners.
func (c *DeviceCenter) OnDiscoveryStopped(err error) {
	for _, l := range c.snapshotDeviceListeners() {
		l.OnDiscoveryStopped(err)
	}
}

// OnPlaybackStatus fans a playback status event out to the event listeners.
func (c *DeviceCenter) OnPlaybackStatus(d Device, status PlaybackStatus) {
	for _, l := range c.snapshotEventListeners() {
		l.OnPlaybackStatus(d, status)
	}
}

// OnMetadataChanged fans a metadata event out to the event listeners.
func (c *DeviceCenter) OnMetadataChanged(d Device, metadata Metadata) {
	for _, l := range c.snapshotEventListeners() {
		l.OnMetadataChanged(d, metadata)
	}
}

// OnUpdateStatus fans a firmware update event out to the event listeners.
func (c *DeviceCenter) OnUpdateStatus(d Device, status UpdateStatus) {
	for _, l := range c.snapshotEventListeners() {
		l.OnUpdateStatus(d, status)
	}
}

// OnCustomEvent fans an unrecognized service event out to the event
// listeners.
func (c *DeviceCenter) OnCustomEvent(d Device, service, name string, params json.RawMessage) {
	for _, l := range c.snapshotEventListeners() {
		l.OnCustomEvent(d, service, name, params)
	}
}

func (c *DeviceCenter) snapshotDeviceListeners() []DeviceListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]DeviceListener(nil), c.deviceListeners...)
}

func (c *DeviceCenter) snapshotEventListeners() []EventListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]EventListener(nil), c.eventListeners...)
}
