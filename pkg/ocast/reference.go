package ocast

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/dial"
	"github.com/xpanvictor/goocast/pkg/transport"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

// Reference receiver identity and endpoint defaults.
const (
	ReferenceManufacturer = "Orange SA"
	ReferenceSearchTarget = "urn:cast-ocast-org:service:cast:1"

	defaultWebSocketPort = 4433
	defaultWebSocketPath = "ocast"

	defaultStartTimeout = 60 * time.Second
)

// Session lifecycle events.
const (
	eventConnect      = "connect"
	eventConnected    = "connected"
	eventDisconnect   = "disconnect"
	eventDisconnected = "disconnected"
)

// commandSocket is the transport surface the session drives.
type commandSocket interface {
	Connect(ctx context.Context, tlsCfg *tls.Config) error
	Send(payload []byte) error
	Disconnect() error
}

// applicationClient launches and stops web applications on the receiver.
type applicationClient interface {
	Application(ctx context.Context, name string) (*dial.Application, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
}

type commandResult struct {
	params json.RawMessage
	err    error
}

// startWaiter parks one StartApplication call until the web application
// joins the channel or something invalidates the wait.
type startWaiter struct {
	name string
	ch   chan struct{}
}

// ReferenceDevice drives the command session of an OCast reference
// receiver: one websocket channel, a lifecycle state machine, correlation
// of replies to outstanding commands and demultiplexing of events.
type ReferenceDevice struct {
	logger *Logger.Logger

	mu                sync.Mutex
	states            *fsm.FSM
	desc              upnp.Device
	appName           string
	tlsCfg            *tls.Config
	socket            commandSocket
	launcher          applicationClient
	launcherURL       string
	outstanding       map[int64]chan commandResult
	pendingConnect    chan error
	pendingDisconnect chan error
	startWaiters      []*startWaiter
	deviceListener    DeviceListener
	eventListener     EventListener

	seq        atomic.Int64
	appRunning atomic.Bool

	startTimeout time.Duration

	newSocket func(url string, delegate transport.Delegate, logger *Logger.Logger) commandSocket
	newDial   func(baseURL string, logger *Logger.Logger) applicationClient
}

var (
	_ Device             = (*ReferenceDevice)(nil)
	_ transport.Delegate = (*ReferenceDevice)(nil)
)

// NewReferenceDevice builds a disconnected session for the given
// descriptor. It is the DeviceFactory of the reference device type.
func NewReferenceDevice(desc upnp.Device, logger *Logger.Logger) Device {
	d := &ReferenceDevice{
		logger:       Logger.OrNop(logger),
		desc:         desc,
		outstanding:  make(map[int64]chan commandResult),
		startTimeout: defaultStartTimeout,
		newSocket: func(url string, delegate transport.Delegate, l *Logger.Logger) commandSocket {
			return transport.NewSession(url, delegate, l)
		},
		newDial: func(baseURL string, l *Logger.Logger) applicationClient {
			return dial.NewClient(baseURL, nil, l)
		},
	}
	d.states = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventConnected, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventDisconnect, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateDisconnecting)},
			{Name: eventDisconnected, Src: []string{string(StateConnecting), string(StateConnected), string(StateDisconnecting)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				d.logger.Debugf("session %s: %s -> %s", d.desc.ID, e.Src, e.Dst)
			},
		},
	)
	return d
}

// ReferenceDeviceType is what gets registered on a device center to drive
// reference receivers.
func ReferenceDeviceType() DeviceType {
	return DeviceType{
		Manufacturer: ReferenceManufacturer,
		SearchTarget: ReferenceSearchTarget,
		New:          NewReferenceDevice,
	}
}

// transition fires a lifecycle event. Callers hold d.mu and have verified
// the transition is legal.
func (d *ReferenceDevice) transition(event string) {
	if err := d.states.Event(context.Background(), event); err != nil {
		d.logger.Errorf("session %s: event %s from %s: %v", d.desc.ID, event, d.states.Current(), err)
	}
}

func (d *ReferenceDevice) UpnpDevice() upnp.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.desc
}

func (d *ReferenceDevice) SetUpnpDevice(desc upnp.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.desc = desc
}

func (d *ReferenceDevice) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceState(d.states.Current())
}

func (d *ReferenceDevice) ApplicationName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appName
}

// SetApplicationName scopes browser-domain commands to the named web
// application. A change invalidates the running flag and aborts pending
// application starts.
func (d *ReferenceDevice) SetApplicationName(name string) {
	d.mu.Lock()
	if name == d.appName {
		d.mu.Unlock()
		return
	}
	d.appName = name
	d.appRunning.Store(false)
	waiters := d.takeWaitersLocked()
	d.mu.Unlock()
	releaseWaiters(waiters)
}

func (d *ReferenceDevice) SetTLSConfig(cfg *tls.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tlsCfg = cfg
}

func (d *ReferenceDevice) SetDeviceListener(l DeviceListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deviceListener = l
}

func (d *ReferenceDevice) SetEventListener(l EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventListener = l
}

// Connect establishes the command channel. The endpoint is taken from the
// application descriptor when an application name is set and the descriptor
// advertises one, otherwise from the well-known default derived from the
// device host.
func (d *ReferenceDevice) Connect(ctx context.Context) error {
	d.mu.Lock()
	switch DeviceState(d.states.Current()) {
	case StateConnected:
		d.mu.Unlock()
		return nil
	case StateConnecting, StateDisconnecting:
		d.mu.Unlock()
		return ErrWrongState
	}
	name := d.appName
	pending := make(chan error, 1)
	d.pendingConnect = pending
	d.transition(eventConnect)
	d.mu.Unlock()

	sockURL := d.webSocketURL(ctx, name)

	d.mu.Lock()
	if d.pendingConnect != pending {
		// a disconnect raced us before the channel was opened
		d.mu.Unlock()
		return <-pending
	}
	socket := d.newSocket(sockURL, d, d.logger)
	d.socket = socket
	tlsCfg := d.tlsCfg
	d.mu.Unlock()

	err := socket.Connect(ctx, tlsCfg)

	d.mu.Lock()
	if d.pendingConnect != pending {
		// a disconnect or a transport teardown resolved the attempt first
		if err != nil {
			// the dial failed, so no pump will ever run the teardown
			drained, waiters := d.teardownLocked()
			pd := d.pendingDisconnect
			d.pendingDisconnect = nil
			d.mu.Unlock()
			failCommands(drained)
			releaseWaiters(waiters)
			if pd != nil {
				pd <- nil
			}
			return <-pending
		}
		d.mu.Unlock()
		// the channel opened after the disconnect raced it; close it so
		// the pump resolves the pending teardown
		socket.Disconnect()
		return <-pending
	}
	d.pendingConnect = nil
	if err != nil {
		d.socket = nil
		d.transition(eventDisconnected)
		d.mu.Unlock()
		return fmt.Errorf("ocast: connecting to %s: %w", sockURL, err)
	}
	d.transition(eventConnected)
	d.mu.Unlock()
	return nil
}

// Disconnect closes the command channel and resolves every outstanding
// command with ErrSocketDisconnected.
func (d *ReferenceDevice) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	switch DeviceState(d.states.Current()) {
	case StateDisconnected:
		d.mu.Unlock()
		return nil
	case StateDisconnecting:
		d.mu.Unlock()
		return ErrWrongState
	}
	pending := make(chan error, 1)
	d.pendingDisconnect = pending
	if d.pendingConnect != nil {
		d.pendingConnect <- ErrConnectAborted
		d.pendingConnect = nil
	}
	socket := d.socket
	d.transition(eventDisconnect)
	if socket == nil {
		// the connect in flight never opened a channel; finish locally
		drained, waiters := d.teardownLocked()
		d.pendingDisconnect = nil
		d.mu.Unlock()
		failCommands(drained)
		releaseWaiters(waiters)
		return nil
	}
	d.mu.Unlock()

	if err := socket.Disconnect(); err != nil {
		d.logger.Debugf("session %s: close request: %v", d.UpnpDevice().ID, err)
	}
	select {
	case err := <-pending:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// webSocketURL resolves the channel endpoint for this connect attempt.
func (d *ReferenceDevice) webSocketURL(ctx context.Context, appName string) string {
	if appName != "" {
		app, err := d.dialClient().Application(ctx, appName)
		if err == nil && app.App2AppURL != "" {
			return app.App2AppURL
		}
		if err != nil {
			d.logger.Debugf("session %s: descriptor fetch before connect: %v", d.UpnpDevice().ID, err)
		}
	}
	return fmt.Sprintf("wss://%s:%d/%s", d.UpnpDevice().Host(), defaultWebSocketPort, defaultWebSocketPath)
}

func (d *ReferenceDevice) dialClient() applicationClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialClientLocked()
}

// dialClientLocked returns the launcher for the current descriptor,
// rebuilding it after a descriptor swap moved the control URL.
func (d *ReferenceDevice) dialClientLocked() applicationClient {
	if d.launcher == nil || d.launcherURL != d.desc.ApplicationURL {
		d.launcher = d.newDial(d.desc.ApplicationURL, d.logger)
		d.launcherURL = d.desc.ApplicationURL
	}
	return d.launcher
}

// teardownLocked moves the session to disconnected and collects everything
// still waiting on the channel. Callers hold d.mu and run the returned
// notifications after unlocking.
func (d *ReferenceDevice) teardownLocked() ([]chan commandResult, []*startWaiter) {
	d.socket = nil
	d.appRunning.Store(false)
	drained := make([]chan commandResult, 0, len(d.outstanding))
	for id, ch := range d.outstanding {
		delete(d.outstanding, id)
		drained = append(drained, ch)
	}
	waiters := d.takeWaitersLocked()
	d.transition(eventDisconnected)
	return drained, waiters
}

func failCommands(drained []chan commandResult) {
	for _, ch := range drained {
		ch <- commandResult{err: ErrSocketDisconnected}
	}
}

func (d *ReferenceDevice) takeWaitersLocked() []*startWaiter {
	waiters := d.startWaiters
	d.startWaiters = nil
	return waiters
}

func releaseWaiters(waiters []*startWaiter) {
	for _, w := range waiters {
		close(w.ch)
	}
}

// OnConnected implements transport.Delegate.
func (d *ReferenceDevice) OnConnected(_ *transport.Session) {
	d.logger.Debugf("session %s: channel established", d.UpnpDevice().ID)
}

// OnMessage implements transport.Delegate: replies resolve their
// outstanding command, events are dispatched to the event listener,
// anything else is dropped.
func (d *ReferenceDevice) OnMessage(_ *transport.Session, payload []byte) {
	env, err := decodeDeviceLayer(payload)
	if err != nil {
		d.logger.Warnf("session %s: dropping frame: %v", d.UpnpDevice().ID, err)
		return
	}
	switch env.Type {
	case TypeReply:
		d.handleReply(env)
	case TypeEvent:
		d.handleEvent(env)
	case TypeCommand:
		d.logger.Debugf("session %s: ignoring inbound command frame %d", d.UpnpDevice().ID, env.ID)
	default:
		d.logger.Warnf("session %s: dropping frame with unknown type %q", d.UpnpDevice().ID, env.Type)
	}
}

// OnDisconnected implements transport.Delegate. Exactly one of the three
// outcomes fires: a pending connect fails, a pending disconnect resolves,
// or the device listener is told about the unsolicited disconnect.
func (d *ReferenceDevice) OnDisconnected(_ *transport.Session, cause error) {
	d.mu.Lock()
	if DeviceState(d.states.Current()) == StateDisconnected {
		d.mu.Unlock()
		return
	}
	drained, waiters := d.teardownLocked()
	pc := d.pendingConnect
	d.pendingConnect = nil
	pd := d.pendingDisconnect
	d.pendingDisconnect = nil
	listener := d.deviceListener
	d.mu.Unlock()

	failCommands(drained)
	releaseWaiters(waiters)

	switch {
	case pd != nil:
		if pc != nil {
			pc <- ErrConnectAborted
		}
		pd <- cause
	case pc != nil:
		if cause == nil {
			cause = ErrSocketDisconnected
		}
		pc <- cause
	default:
		d.logger.Infof("session %s: channel lost: %v", d.desc.ID, cause)
		if listener != nil {
			listener.OnDeviceDisconnected(d, cause)
		}
	}
}

// handleReply resolves the outstanding command the reply correlates to.
// Late and unsolicited replies are dropped.
func (d *ReferenceDevice) handleReply(env *DeviceLayer) {
	d.mu.Lock()
	ch, ok := d.outstanding[env.ID]
	delete(d.outstanding, env.ID)
	d.mu.Unlock()
	if !ok {
		d.logger.Debugf("session %s: reply %d has no outstanding command", d.UpnpDevice().ID, env.ID)
		return
	}
	if env.Status != StatusOK {
		ch <- commandResult{err: &DeviceLayerError{Status: env.Status}}
		return
	}
	code, err := replyCode(env.Message.Data.Params)
	if err != nil {
		ch <- commandResult{err: err}
		return
	}
	if code != 0 {
		ch <- commandResult{err: &ReplyError{Code: code}}
		return
	}
	ch <- commandResult{params: env.Message.Data.Params}
}

// handleEvent dispatches one event frame. Known media and settings events
// arrive typed, everything else goes through OnCustomEvent.
func (d *ReferenceDevice) handleEvent(env *DeviceLayer) {
	service := env.Message.Service
	name := env.Message.Data.Name
	params := env.Message.Data.Params

	if service == ServiceWebApp && name == WebAppEventConnectedStatus {
		d.handleConnectedStatus(params)
		return
	}

	d.mu.Lock()
	listener := d.eventListener
	d.mu.Unlock()
	if listener == nil {
		return
	}

	switch {
	case service == ServiceMedia && name == MediaEventPlaybackStatus:
		var status PlaybackStatus
		if err := json.Unmarshal(params, &status); err != nil {
			d.logger.Warnf("session %s: dropping %s event: %v", d.UpnpDevice().ID, name, err)
			return
		}
		listener.OnPlaybackStatus(d, status)
	case service == ServiceMedia && name == MediaEventMetadataChanged:
		var metadata Metadata
		if err := json.Unmarshal(params, &metadata); err != nil {
			d.logger.Warnf("session %s: dropping %s event: %v", d.UpnpDevice().ID, name, err)
			return
		}
		listener.OnMetadataChanged(d, metadata)
	case service == ServiceSettingsDevice && name == SettingsEventUpdateStatus:
		var status UpdateStatus
		if err := json.Unmarshal(params, &status); err != nil {
			d.logger.Warnf("session %s: dropping %s event: %v", d.UpnpDevice().ID, name, err)
			return
		}
		listener.OnUpdateStatus(d, status)
	default:
		listener.OnCustomEvent(d, service, name, params)
	}
}

// handleConnectedStatus tracks whether the web application is on the
// channel and releases start rendezvous on join.
func (d *ReferenceDevice) handleConnectedStatus(params json.RawMessage) {
	var ev connectedStatusEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		d.logger.Warnf("session %s: dropping %s event: %v", d.UpnpDevice().ID, WebAppEventConnectedStatus, err)
		return
	}
	if ev.Status != WebAppStatusConnected {
		d.appRunning.Store(false)
		return
	}
	d.appRunning.Store(true)
	d.mu.Lock()
	waiters := d.takeWaitersLocked()
	d.mu.Unlock()
	releaseWaiters(waiters)
}

// nextID returns the next command sequence number. Ids are never 0 and
// wrap back to 1 after the int64 range is exhausted.
func (d *ReferenceDevice) nextID() int64 {
	for {
		cur := d.seq.Load()
		next := cur + 1
		if cur == math.MaxInt64 {
			next = 1
		}
		if d.seq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Send transmits one command and blocks until its reply resolves it.
// Browser-domain commands first make sure the configured application is
// running; settings-domain commands go straight to the device.
func (d *ReferenceDevice) Send(ctx context.Context, domain string, msg Message) (json.RawMessage, error) {
	if domain != DomainSettings {
		if err := d.ensureApplicationRunning(ctx); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	socket := d.socket
	if socket == nil || DeviceState(d.states.Current()) != StateConnected {
		d.mu.Unlock()
		return nil, ErrWrongState
	}
	id := d.nextID()
	ch := make(chan commandResult, 1)
	d.outstanding[id] = ch
	d.mu.Unlock()

	payload, err := newCommand(id, domain, msg)
	if err != nil {
		d.forgetCommand(id)
		return nil, err
	}
	if err := socket.Send(payload); err != nil {
		d.forgetCommand(id)
		return nil, fmt.Errorf("ocast: sending %s/%s: %w", msg.Service, msg.Name, err)
	}

	select {
	case res := <-ch:
		return res.params, res.err
	case <-ctx.Done():
		d.forgetCommand(id)
		return nil, ctx.Err()
	}
}

func (d *ReferenceDevice) forgetCommand(id int64) {
	d.mu.Lock()
	delete(d.outstanding, id)
	d.mu.Unlock()
}

func (d *ReferenceDevice) ensureApplicationRunning(ctx context.Context) error {
	if d.appRunning.Load() {
		return nil
	}
	return d.StartApplication(ctx)
}

// StartApplication starts the configured web application and waits until it
// joins the command channel. Success requires the exact expected outcome:
// the application reported connected, under the same name, with the session
// still connected.
func (d *ReferenceDevice) StartApplication(ctx context.Context) error {
	d.mu.Lock()
	name := d.appName
	if name == "" {
		d.mu.Unlock()
		return ErrApplicationNameNotSet
	}
	if DeviceState(d.states.Current()) != StateConnected {
		d.mu.Unlock()
		return ErrWrongState
	}
	client := d.dialClientLocked()
	d.mu.Unlock()

	if d.appRunning.Load() {
		return nil
	}

	app, err := client.Application(ctx, name)
	if err != nil {
		return fmt.Errorf("ocast: fetching %s descriptor: %w", name, err)
	}
	if app.State == dial.StateRunning {
		d.appRunning.Store(true)
		return nil
	}

	waiter := &startWaiter{name: name, ch: make(chan struct{})}
	d.mu.Lock()
	d.startWaiters = append(d.startWaiters, waiter)
	d.mu.Unlock()

	if err := client.Start(ctx, name); err != nil {
		d.dropWaiter(waiter)
		return fmt.Errorf("ocast: starting %s: %w", name, err)
	}

	timer := time.NewTimer(d.startTimeout)
	defer timer.Stop()
	select {
	case <-waiter.ch:
		if d.appRunning.Load() && d.ApplicationName() == name && d.State() == StateConnected {
			return nil
		}
		return ErrApplicationStartAborted
	case <-timer.C:
		d.dropWaiter(waiter)
		return ErrApplicationStartTimeout
	case <-ctx.Done():
		d.dropWaiter(waiter)
		return ctx.Err()
	}
}

func (d *ReferenceDevice) dropWaiter(w *startWaiter) {
	d.mu.Lock()
	for i, cand := range d.startWaiters {
		if cand == w {
			d.startWaiters = append(d.startWaiters[:i], d.startWaiters[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
}

// StopApplication stops the configured web application through the launch
// service. It works with or without a command channel.
func (d *ReferenceDevice) StopApplication(ctx context.Context) error {
	d.mu.Lock()
	name := d.appName
	if name == "" {
		d.mu.Unlock()
		return ErrApplicationNameNotSet
	}
	client := d.dialClientLocked()
	d.mu.Unlock()

	if err := client.Stop(ctx, name); err != nil {
		return fmt.Errorf("ocast: stopping %s: %w", name, err)
	}
	d.appRunning.Store(false)
	return nil
}

func (d *ReferenceDevice) send(ctx context.Context, domain, service, name string, params any) (json.RawMessage, error) {
	return d.Send(ctx, domain, Message{Service: service, Name: name, Params: params})
}

func (d *ReferenceDevice) PrepareMedia(ctx context.Context, params PrepareParams) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandPrepare, params)
	return err
}

func (d *ReferenceDevice) PlayMedia(ctx context.Context, position float64) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandPlay, PlayParams{Position: position})
	return err
}

func (d *ReferenceDevice) StopMedia(ctx context.Context) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandStop, nil)
	return err
}

func (d *ReferenceDevice) PauseMedia(ctx context.Context) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandPause, nil)
	return err
}

func (d *ReferenceDevice) ResumeMedia(ctx context.Context) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandResume, nil)
	return err
}

func (d *ReferenceDevice) SeekMedia(ctx context.Context, position float64) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandSeek, SeekParams{Position: position})
	return err
}

func (d *ReferenceDevice) SetVolume(ctx context.Context, volume float64) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandVolume, VolumeParams{Volume: volume})
	return err
}

func (d *ReferenceDevice) SetMute(ctx context.Context, mute bool) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandMute, MuteParams{Mute: mute})
	return err
}

func (d *ReferenceDevice) SetTrack(ctx context.Context, params TrackParams) error {
	_, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandTrack, params)
	return err
}

func (d *ReferenceDevice) PlaybackStatus(ctx context.Context) (*PlaybackStatus, error) {
	raw, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandGetPlaybackStatus, nil)
	if err != nil {
		return nil, err
	}
	var status PlaybackStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("ocast: decoding playback status: %w", err)
	}
	return &status, nil
}

func (d *ReferenceDevice) Metadata(ctx context.Context) (*Metadata, error) {
	raw, err := d.send(ctx, DomainBrowser, ServiceMedia, MediaCommandGetMetadata, nil)
	if err != nil {
		return nil, err
	}
	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("ocast: decoding metadata: %w", err)
	}
	return &metadata, nil
}

func (d *ReferenceDevice) UpdateStatus(ctx context.Context) (*UpdateStatus, error) {
	raw, err := d.send(ctx, DomainSettings, ServiceSettingsDevice, SettingsCommandGetUpdateStatus, nil)
	if err != nil {
		return nil, err
	}
	var status UpdateStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("ocast: decoding update status: %w", err)
	}
	return &status, nil
}

func (d *ReferenceDevice) DeviceID(ctx context.Context) (string, error) {
	raw, err := d.send(ctx, DomainSettings, ServiceSettingsDevice, SettingsCommandGetDeviceID, nil)
	if err != nil {
		return "", err
	}
	var id DeviceID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("ocast: decoding device id: %w", err)
	}
	return id.ID, nil
}

func (d *ReferenceDevice) SendKeyEvent(ctx context.Context, params KeyPressedParams) error {
	_, err := d.send(ctx, DomainSettings, ServiceSettingsInput, InputCommandKeyPressed, params)
	return err
}
