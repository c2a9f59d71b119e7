// Package discovery runs the SSDP probe cycle that keeps a live set of
// reachable receivers: periodic multicast probes, response collection,
// description resolution and soft-state eviction of devices that stop
// answering.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/ssdp"
	"github.com/xpanvictor/goocast/pkg/upnp"
)

// State is the engine run state.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

const (
	// DefaultInterval is the probe period when none is configured.
	DefaultInterval = 30 * time.Second
	// MinInterval is the floor any configured period is clamped to.
	MinInterval = 5 * time.Second

	// probeRepeat is how many times each probe is sent per round, since
	// discovery runs over lossy UDP.
	probeRepeat = 2

	fetchTimeout  = 5 * time.Second
	readChunkSize = 2048
)

// Listener observes the live-device set maintained by the engine. Callbacks
// run on engine goroutines and must not block.
type Listener interface {
	// OnDeviceDiscovered fires when a new device's description resolved.
	OnDeviceDiscovered(dev upnp.Device)
	// OnDeviceLost fires when a device is evicted, on stop, or after it
	// missed a full probe round.
	OnDeviceLost(dev upnp.Device)
	// OnDeviceUpdated fires when a known device moved to a new description
	// location and the new description resolved.
	OnDeviceUpdated(dev upnp.Device)
	// OnDiscoveryStopped fires once per stop, with the socket error when
	// the engine was forced down by one.
	OnDiscoveryStopped(err error)
}

// descriptionResolver turns a response LOCATION into a device descriptor.
// Satisfied by *upnp.Client.
type descriptionResolver interface {
	DeviceDescription(ctx context.Context, location string) (*upnp.Device, error)
}

// packetConn is the slice of *net.UDPConn the engine uses.
type packetConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// liveDevice is the engine's bookkeeping for one responding device.
type liveDevice struct {
	device    upnp.Device
	location  string
	lastRound uint64
}

// Service is the discovery engine. One instance serves one device center.
type Service struct {
	logger   *Logger.Logger
	resolver descriptionResolver
	target   net.Addr

	mu         sync.Mutex
	state      State
	signatures []string
	interval   time.Duration
	listener   Listener
	devices    map[string]*liveDevice
	resolving  map[string]string
	round      uint64
	conn       packetConn
	stopCh     chan struct{}

	kick chan struct{}

	// listenPacket opens the probe socket; swapped in tests.
	listenPacket func() (packetConn, error)
}

// NewService builds a stopped engine with the default probe interval.
func NewService(logger *Logger.Logger) *Service {
	target, _ := net.ResolveUDPAddr("udp4", ssdp.MulticastAddr)
	return &Service{
		logger:    Logger.OrNop(logger),
		resolver:  upnp.NewClient(nil, logger),
		target:    target,
		state:     StateStopped,
		interval:  DefaultInterval,
		devices:   make(map[string]*liveDevice),
		resolving: make(map[string]string),
		kick:      make(chan struct{}, 1),
		listenPacket: func() (packetConn, error) {
			return net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
		},
	}
}

// SetListener installs the callback sink. Set it before the first Resume.
func (s *Service) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// RegisterSearchSignature adds a search target to every future probe round.
func (s *Service) RegisterSearchSignature(searchTarget string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.signatures {
		if st == searchTarget {
			return
		}
	}
	s.signatures = append(s.signatures, searchTarget)
}

// State reports the engine run state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval reports the probe period.
func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the probe period, clamped to MinInterval. A change
// while running reschedules the next round to fire immediately.
func (s *Service) SetInterval(d time.Duration) {
	if d < MinInterval {
		d = MinInterval
	}
	s.mu.Lock()
	changed := d != s.interval
	s.interval = d
	running := s.state == StateRunning
	s.mu.Unlock()
	if changed && running {
		s.kickProbe()
	}
}

// Devices snapshots the live-device set.
func (s *Service) Devices() []upnp.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := make([]upnp.Device, 0, len(s.devices))
	for _, ld := range s.devices {
		devices = append(devices, ld.device)
	}
	return devices
}

// Resume starts probing. From Stopped it opens the socket and spawns the
// probe and read loops; from Paused it just picks probing back up. Returns
// false when already running or when the socket cannot be opened.
func (s *Service) Resume() bool {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return false
	case StateStopped:
		conn, err := s.listenPacket()
		if err != nil {
			s.mu.Unlock()
			s.logger.Errorf("discovery: opening probe socket: %v", err)
			return false
		}
		s.conn = conn
		s.stopCh = make(chan struct{})
		s.devices = make(map[string]*liveDevice)
		s.resolving = make(map[string]string)
		s.round = 0
		s.state = StateRunning
		stop := s.stopCh
		s.mu.Unlock()
		go s.probeLoop(conn, stop)
		go s.readLoop(conn, stop)
		return true
	default: // paused
		s.state = StateRunning
		s.mu.Unlock()
		s.kickProbe()
		return true
	}
}

// Pause stops probing but keeps the socket and the live-device set, so a
// later Resume picks up where it left off. Returns false unless running.
func (s *Service) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.state = StatePaused
	return true
}

// Stop halts the engine, closes the socket, clears the live-device set and
// notifies removal of every device that was present, then reports the stop.
func (s *Service) Stop() {
	s.stop(nil)
}

func (s *Service) stop(cause error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	conn := s.conn
	s.conn = nil
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	dropped := make([]upnp.Device, 0, len(s.devices))
	for _, ld := range s.devices {
		dropped = append(dropped, ld.device)
	}
	s.devices = make(map[string]*liveDevice)
	s.resolving = make(map[string]string)
	listener := s.listener
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cause != nil {
		s.logger.Errorf("discovery: stopped: %v", cause)
	} else {
		s.logger.Infof("discovery: stopped")
	}
	if listener != nil {
		for _, dev := range dropped {
			listener.OnDeviceLost(dev)
		}
		listener.OnDiscoveryStopped(cause)
	}
}

func (s *Service) kickProbe() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// probeLoop drives the probe rounds: one immediately, then one per
// interval, with kicks jumping the schedule.
func (s *Service) probeLoop(conn packetConn, stop chan struct{}) {
	s.probeRound(conn)
	for {
		s.mu.Lock()
		interval := s.interval
		s.mu.Unlock()
		timer := time.NewTimer(interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-s.kick:
			timer.Stop()
			s.probeRound(conn)
		case <-timer.C:
			s.probeRound(conn)
		}
	}
}

// probeRound evicts devices that missed the previous round, then sends
// every registered search signature. Rounds are skipped while paused.
func (s *Service) probeRound(conn packetConn) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.round++
	round := s.round
	var lost []upnp.Device
	for id, ld := range s.devices {
		if ld.lastRound < round-1 {
			delete(s.devices, id)
			lost = append(lost, ld.device)
		}
	}
	signatures := append([]string(nil), s.signatures...)
	listener := s.listener
	s.mu.Unlock()

	for _, dev := range lost {
		s.logger.Infof("discovery: device %s (%s) stopped responding", dev.FriendlyName, dev.ID)
		if listener != nil {
			listener.OnDeviceLost(dev)
		}
	}

	for _, st := range signatures {
		payload := ssdp.SearchRequest{SearchTarget: st}.Bytes()
		for i := 0; i < probeRepeat; i++ {
			if _, err := conn.WriteTo(payload, s.target); err != nil {
				go s.stop(fmt.Errorf("discovery: probe write: %w", err))
				return
			}
		}
	}
}

// readLoop collects probe responses until the socket closes. A read error
// that is not a timeout forces the engine down.
func (s *Service) readLoop(conn packetConn, stop chan struct{}) {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-stop:
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			go s.stop(fmt.Errorf("discovery: socket read: %w", err))
			return
		}
		s.handleResponse(buf[:n])
	}
}

// handleResponse books one probe response: refresh for known devices,
// description fetch for new ones, refetch when a known device moved to a
// different location.
func (s *Service) handleResponse(data []byte) {
	resp, err := ssdp.ParseSearchResponse(data)
	if err != nil {
		s.logger.Debugf("discovery: ignoring packet: %v", err)
		return
	}
	id, err := ssdp.DeviceID(resp.USN)
	if err != nil {
		s.logger.Debugf("discovery: ignoring response from %s: %v", resp.Location, err)
		return
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if ld, ok := s.devices[id]; ok {
		ld.lastRound = s.round
		if ld.location == resp.Location {
			s.mu.Unlock()
			return
		}
		if s.resolving[id] == resp.Location {
			s.mu.Unlock()
			return
		}
		s.resolving[id] = resp.Location
		s.mu.Unlock()
		go s.resolve(id, resp.Location, true)
		return
	}
	if _, busy := s.resolving[id]; busy {
		s.mu.Unlock()
		return
	}
	s.resolving[id] = resp.Location
	s.mu.Unlock()
	go s.resolve(id, resp.Location, false)
}

// resolve fetches and books a device description. update marks refetches
// for devices that moved location.
func (s *Service) resolve(id, location string, update bool) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	dev, err := s.resolver.DeviceDescription(ctx, location)

	s.mu.Lock()
	delete(s.resolving, id)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debugf("discovery: description at %s: %v", location, err)
		return
	}
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	// the USN uuid is the identity probes are booked under; keep the
	// descriptor consistent with it even if the description body disagrees
	if dev.ID != id {
		s.logger.Debugf("discovery: description at %s has UDN %s, keying by %s", location, dev.ID, id)
		dev.ID = id
	}
	_, known := s.devices[id]
	s.devices[id] = &liveDevice{device: *dev, location: location, lastRound: s.round}
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		return
	}
	if update && known {
		s.logger.Infof("discovery: device %s (%s) changed description", dev.FriendlyName, dev.ID)
		listener.OnDeviceUpdated(*dev)
		return
	}
	s.logger.Infof("discovery: device %s (%s) discovered at %s", dev.FriendlyName, dev.ID, location)
	listener.OnDeviceDiscovered(*dev)
}
