package ocast

import (
	"context"
	"crypto/tls"
	"encoding/json"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

// DeviceState is the lifecycle state of a device session.
type DeviceState string

const (
	StateDisconnected  DeviceState = "disconnected"
	StateConnecting    DeviceState = "connecting"
	StateConnected     DeviceState = "connected"
	StateDisconnecting DeviceState = "disconnecting"
)

// Device is one discovered receiver with its command session. Implementations
// are safe for concurrent use.
type Device interface {
	// UpnpDevice returns the current discovery descriptor.
	UpnpDevice() upnp.Device
	// SetUpnpDevice swaps the descriptor after a discovery change.
	SetUpnpDevice(desc upnp.Device)
	// State reports the session lifecycle state.
	State() DeviceState

	// ApplicationName returns the web application commands are scoped to.
	ApplicationName() string
	// SetApplicationName scopes subsequent commands to the named web
	// application. Changing the name aborts a pending application start.
	SetApplicationName(name string)
	// SetTLSConfig installs the TLS settings used for later connects.
	SetTLSConfig(cfg *tls.Config)

	// Connect establishes the command channel. It is a no-op when already
	// connected and fails with ErrWrongState while a connect or disconnect
	// is in flight.
	Connect(ctx context.Context) error
	// Disconnect closes the command channel, failing all outstanding
	// commands with ErrSocketDisconnected. No-op when already disconnected.
	Disconnect(ctx context.Context) error

	// StartApplication starts the configured web application and waits for
	// it to join the command channel.
	StartApplication(ctx context.Context) error
	// StopApplication stops the configured web application.
	StopApplication(ctx context.Context) error

	// Send transmits one command in the given domain and returns the reply
	// params. Browser-domain commands implicitly start the configured
	// application first.
	Send(ctx context.Context, domain string, msg Message) (json.RawMessage, error)

	// Media service helpers.
	PrepareMedia(ctx context.Context, params PrepareParams) error
	PlayMedia(ctx context.Context, position float64) error
	StopMedia(ctx context.Context) error
	PauseMedia(ctx context.Context) error
	ResumeMedia(ctx context.Context) error
	SeekMedia(ctx context.Context, position float64) error
	SetVolume(ctx context.Context, volume float64) error
	SetMute(ctx context.Context, mute bool) error
	SetTrack(ctx context.Context, params TrackParams) error
	PlaybackStatus(ctx context.Context) (*PlaybackStatus, error)
	Metadata(ctx context.Context) (*Metadata, error)

	// Settings service helpers.
	UpdateStatus(ctx context.Context) (*UpdateStatus, error)
	DeviceID(ctx context.Context) (string, error)
	SendKeyEvent(ctx context.Context, params KeyPressedParams) error

	// SetDeviceListener installs the sink for unsolicited disconnects.
	SetDeviceListener(l DeviceListener)
	// SetEventListener installs the sink for protocol events.
	SetEventListener(l EventListener)
}

// DeviceListener observes device lifecycle notifications fanned out by the
// device center.
type DeviceListener interface {
	OnDeviceAdded(d Device)
	OnDeviceRemoved(d Device)
	OnDeviceChanged(d Device)
	// OnDeviceDisconnected fires once when an established channel goes down
	// without a local disconnect in flight.
	OnDeviceDisconnected(d Device, err error)
	// OnDiscoveryStopped fires when discovery halts, with the socket error
	// when it was forced down.
	OnDiscoveryStopped(err error)
}

// EventListener observes protocol events demultiplexed from device channels.
// Events of unknown services are delivered through OnCustomEvent.
type EventListener interface {
	OnPlaybackStatus(d Device, status PlaybackStatus)
	OnMetadataChanged(d Device, metadata Metadata)
	OnUpdateStatus(d Device, status UpdateStatus)
	OnCustomEvent(d Device, service, name string, params json.RawMessage)
}

// DeviceFactory builds a session for a freshly discovered descriptor.
type DeviceFactory func(desc upnp.Device, logger *Logger.Logger) Device

// DeviceType binds a manufacturer signature to the search target that finds
// its devices and the factory that drives them.
type DeviceType struct {
	Manufacturer string
	SearchTarget string
	New          DeviceFactory
}
