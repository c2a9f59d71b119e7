// Package emulator implements a software OCast receiver: device
// description and DIAL endpoints over HTTP, the websocket command channel,
// and an SSDP responder. It backs the simulator binary and the end-to-end
// tests.
package emulator

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xpanvictor/goocast/pkg/Logger"
	"github.com/xpanvictor/goocast/pkg/ocast"
)

// Config describes the receiver the emulator pretends to be.
type Config struct {
	FriendlyName string
	Manufacturer string
	ModelName    string
	UDN          string // uuid, generated when empty
	SearchTarget string
	Version      string   // firmware version reported by the settings service
	Apps         []string // application names served; empty accepts any
}

func (c Config) withDefaults() Config {
	if c.FriendlyName == "" {
		c.FriendlyName = "OCast Emulator"
	}
	if c.Manufacturer == "" {
		c.Manufacturer = ocast.ReferenceManufacturer
	}
	if c.ModelName == "" {
		c.ModelName = "ocast-sim"
	}
	if c.UDN == "" {
		c.UDN = uuid.New().String()
	}
	if c.SearchTarget == "" {
		c.SearchTarget = ocast.ReferenceSearchTarget
	}
	if c.Version == "" {
		c.Version = "1.0"
	}
	return c
}

// appState tracks one application known to the receiver.
type appState struct {
	name    string
	running bool
}

// mediaState is the playback model behind the media service.
type mediaState struct {
	url       string
	mediaType string
	title     string
	subtitle  string
	logo      string
	state     ocast.PlayerState
	position  float64
	duration  float64
	volume    float64
	muted     bool
}

// Emulator is one simulated receiver. Safe for concurrent use; every HTTP
// and websocket handler shares it.
type Emulator struct {
	cfg    Config
	logger *Logger.Logger

	mu      sync.RWMutex
	baseURL string
	apps    map[string]*appState
	media   mediaState
	update  ocast.UpdateStatus

	seq int64 // event frame ids
}

// New builds an emulator. Applications named in the config start out
// stopped; with no names configured any requested application is accepted.
func New(cfg Config, logger *Logger.Logger) *Emulator {
	cfg = cfg.withDefaults()
	e := &Emulator{
		cfg:    cfg,
		logger: Logger.OrNop(logger),
		apps:   make(map[string]*appState),
		media:  mediaState{volume: 1.0},
		update: ocast.UpdateStatus{State: ocast.UpdateStateUpToDate, Version: cfg.Version},
	}
	for _, name := range cfg.Apps {
		e.apps[name] = &appState{name: name}
	}
	return e
}

// UDN returns the device uuid the emulator advertises.
func (e *Emulator) UDN() string {
	return e.cfg.UDN
}

// SetBaseURL pins the advertised control URL, normally derived from the
// bound HTTP listener. Tests point it at their httptest server.
func (e *Emulator) SetBaseURL(u string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseURL = strings.TrimRight(u, "/")
}

// BaseURL returns the advertised control URL.
func (e *Emulator) BaseURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.baseURL
}

// app returns the state for name, lazily creating it when the emulator
// accepts any application.
func (e *Emulator) app(name string) (*appState, bool) {
	if app, ok := e.apps[name]; ok {
		return app, true
	}
	if len(e.cfg.Apps) > 0 {
		return nil, false
	}
	app := &appState{name: name}
	e.apps[name] = app
	return app, true
}

// startApp marks an application running. The caller announces the webapp
// join through a connectedStatus event.
func (e *Emulator) startApp(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	app, ok := e.app(name)
	if !ok {
		return false
	}
	app.running = true
	return true
}

// stopApp marks an application stopped and resets playback.
func (e *Emulator) stopApp(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	app, ok := e.app(name)
	if !ok {
		return false
	}
	app.running = false
	e.media = mediaState{volume: e.media.volume}
	return true
}

func (e *Emulator) appRunning(name string) (running, known bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	app, ok := e.app(name)
	if !ok {
		return false, false
	}
	return app.running, true
}

func (e *Emulator) nextSeq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return e.seq
}

// reply wraps params into the reply frame for env.
func reply(env *ocast.DeviceLayer, params any) *ocast.DeviceLayer {
	raw, _ := json.Marshal(params)
	return &ocast.DeviceLayer{
		Src:    env.Dst,
		Dst:    env.Src,
		Type:   ocast.TypeReply,
		Status: ocast.StatusOK,
		ID:     env.ID,
		Message: ocast.ApplicationLayer{
			Service: env.Message.Service,
			Data: ocast.DataLayer{
				Name:   env.Message.Data.Name,
				Params: raw,
			},
		},
	}
}

// statusReply builds a reply whose envelope status reports a device-layer
// failure. Id 0 marks frames that never parsed far enough to correlate.
func statusReply(id int64, status string) *ocast.DeviceLayer {
	return &ocast.DeviceLayer{
		Src:    DomainDevice,
		Dst:    ocast.ControllerID,
		Type:   ocast.TypeReply,
		Status: status,
		ID:     id,
	}
}

// DomainDevice is the src the emulator stamps on device-layer failures.
const DomainDevice = "device"

type codeParams struct {
	Code int `json:"code"`
}

// event builds one event frame for broadcast.
func (e *Emulator) event(domain, service, name string, params any) *ocast.DeviceLayer {
	raw, _ := json.Marshal(params)
	return &ocast.DeviceLayer{
		Src:  domain,
		Dst:  ocast.ControllerID,
		Type: ocast.TypeEvent,
		ID:   e.nextSeq(),
		Message: ocast.ApplicationLayer{
			Service: service,
			Data:    ocast.DataLayer{Name: name, Params: raw},
		},
	}
}

func (e *Emulator) connectedStatusEvent(status string) *ocast.DeviceLayer {
	return e.event(ocast.DomainBrowser, ocast.ServiceWebApp, ocast.WebAppEventConnectedStatus,
		map[string]string{"status": status})
}

func (e *Emulator) playbackStatusEvent() *ocast.DeviceLayer {
	e.mu.RLock()
	params := e.playbackParamsLocked(0)
	e.mu.RUnlock()
	return e.event(ocast.DomainBrowser, ocast.ServiceMedia, ocast.MediaEventPlaybackStatus, params)
}

type playbackParams struct {
	Code     int               `json:"code"`
	Position float64           `json:"position"`
	Duration float64           `json:"duration"`
	State    ocast.PlayerState `json:"state"`
	Volume   float64           `json:"volume"`
	Mute     bool              `json:"mute"`
}

func (e *Emulator) playbackParamsLocked(code int) playbackParams {
	return playbackParams{
		Code:     code,
		Position: e.media.position,
		Duration: e.media.duration,
		State:    e.media.state,
		Volume:   e.media.volume,
		Mute:     e.media.muted,
	}
}

type metadataParams struct {
	Code      int           `json:"code"`
	Title     string        `json:"title"`
	Subtitle  string        `json:"subtitle"`
	Logo      string        `json:"logo"`
	MediaType string        `json:"mediaType"`
	Audio     []ocast.Track `json:"audioTracks"`
	Video     []ocast.Track `json:"videoTracks"`
	Text      []ocast.Track `json:"textTracks"`
}

// handleCommand executes one inbound command frame and returns the reply
// plus any event frames to broadcast to every attached controller.
func (e *Emulator) handleCommand(env *ocast.DeviceLayer) (*ocast.DeviceLayer, []*ocast.DeviceLayer) {
	switch env.Message.Service {
	case ocast.ServiceMedia:
		return e.handleMediaCommand(env)
	case ocast.ServiceSettingsDevice:
		return e.handleSettingsCommand(env), nil
	case ocast.ServiceSettingsInput:
		return e.handleInputCommand(env), nil
	default:
		e.logger.Warnf("emulator: command for unknown service %q", env.Message.Service)
		return reply(env, codeParams{Code: ocast.MediaCodeInvalidService}), nil
	}
}

func (e *Emulator) handleMediaCommand(env *ocast.DeviceLayer) (*ocast.DeviceLayer, []*ocast.DeviceLayer) {
	name := env.Message.Data.Name
	params := env.Message.Data.Params

	e.mu.Lock()
	var (
		code    = ocast.MediaCodeSuccess
		rep     *ocast.DeviceLayer
		changed bool
	)
	switch name {
	case ocast.MediaCommandPrepare:
		var p ocast.PrepareParams
		if err := json.Unmarshal(params, &p); err != nil || p.URL == "" {
			code = ocast.MediaCodeMissingParameter
			break
		}
		e.media = mediaState{
			url:       p.URL,
			mediaType: p.MediaType,
			title:     p.Title,
			subtitle:  p.Subtitle,
			logo:      p.Logo,
			duration:  0,
			volume:    e.media.volume,
			muted:     e.media.muted,
			state:     ocast.PlayerStateBuffering,
		}
		if p.AutoPlay {
			e.media.state = ocast.PlayerStatePlaying
		}
		changed = true
	case ocast.MediaCommandPlay:
		var p ocast.PlayParams
		if err := json.Unmarshal(params, &p); err != nil {
			code = ocast.MediaCodeMissingParameter
			break
		}
		if e.media.url == "" {
			code = ocast.MediaCodePlayerNotReady
			break
		}
		e.media.state = ocast.PlayerStatePlaying
		e.media.position = p.Position
		changed = true
	case ocast.MediaCommandStop:
		e.media.state = ocast.PlayerStateIdle
		e.media.position = 0
		changed = true
	case ocast.MediaCommandPause:
		if e.media.state != ocast.PlayerStatePlaying {
			code = ocast.MediaCodeInvalidPlayerState
			break
		}
		e.media.state = ocast.PlayerStatePaused
		changed = true
	case ocast.MediaCommandResume:
		if e.media.state != ocast.PlayerStatePaused {
			code = ocast.MediaCodeInvalidPlayerState
			break
		}
		e.media.state = ocast.PlayerStatePlaying
		changed = true
	case ocast.MediaCommandSeek:
		var p ocast.SeekParams
		if err := json.Unmarshal(params, &p); err != nil {
			code = ocast.MediaCodeMissingParameter
			break
		}
		if e.media.state == ocast.PlayerStateIdle || e.media.state == ocast.PlayerStateUnknown {
			code = ocast.MediaCodeInvalidPlayerState
			break
		}
		e.media.position = p.Position
		changed = true
	case ocast.MediaCommandVolume:
		var p ocast.VolumeParams
		if err := json.Unmarshal(params, &p); err != nil || p.Volume < 0 || p.Volume > 1 {
			code = ocast.MediaCodeMissingParameter
			break
		}
		e.media.volume = p.Volume
		changed = true
	case ocast.MediaCommandMute:
		var p ocast.MuteParams
		if err := json.Unmarshal(params, &p); err != nil {
			code = ocast.MediaCodeMissingParameter
			break
		}
		e.media.muted = p.Mute
		changed = true
	case ocast.MediaCommandTrack:
		var p ocast.TrackParams
		if err := json.Unmarshal(params, &p); err != nil {
			code = ocast.MediaCodeMissingParameter
			break
		}
		if p.Type != ocast.TrackTypeAudio && p.Type != ocast.TrackTypeVideo && p.Type != ocast.TrackTypeText {
			code = ocast.MediaCodeInvalidTrack
		}
	case ocast.MediaCommandGetPlaybackStatus:
		rep = reply(env, e.playbackParamsLocked(ocast.MediaCodeSuccess))
	case ocast.MediaCommandGetMetadata:
		rep = reply(env, metadataParams{
			Code:      ocast.MediaCodeSuccess,
			Title:     e.media.title,
			Subtitle:  e.media.subtitle,
			Logo:      e.media.logo,
			MediaType: e.media.mediaType,
			Audio:     []ocast.Track{},
			Video:     []ocast.Track{},
			Text:      []ocast.Track{},
		})
	default:
		e.logger.Warnf("emulator: unknown media command %q", name)
		code = ocast.MediaCodeNoImplementation
	}
	e.mu.Unlock()

	if rep == nil {
		rep = reply(env, codeParams{Code: code})
	}
	var events []*ocast.DeviceLayer
	if changed && code == ocast.MediaCodeSuccess {
		events = append(events, e.playbackStatusEvent())
	}
	return rep, events
}

func (e *Emulator) handleSettingsCommand(env *ocast.DeviceLayer) *ocast.DeviceLayer {
	switch env.Message.Data.Name {
	case ocast.SettingsCommandGetUpdateStatus:
		e.mu.RLock()
		status := e.update
		e.mu.RUnlock()
		return reply(env, struct {
			Code     int    `json:"code"`
			State    string `json:"state"`
			Version  string `json:"version"`
			Progress int    `json:"progress"`
		}{ocast.MediaCodeSuccess, status.State, status.Version, status.Progress})
	case ocast.SettingsCommandGetDeviceID:
		return reply(env, struct {
			Code int    `json:"code"`
			ID   string `json:"id"`
		}{ocast.MediaCodeSuccess, e.cfg.UDN})
	default:
		e.logger.Warnf("emulator: unknown settings command %q", env.Message.Data.Name)
		return reply(env, codeParams{Code: ocast.MediaCodeNoImplementation})
	}
}

func (e *Emulator) handleInputCommand(env *ocast.DeviceLayer) *ocast.DeviceLayer {
	switch env.Message.Data.Name {
	case ocast.InputCommandKeyPressed:
		var p ocast.KeyPressedParams
		if err := json.Unmarshal(env.Message.Data.Params, &p); err != nil || p.Key == "" {
			return reply(env, codeParams{Code: ocast.MediaCodeMissingParameter})
		}
		e.logger.Debugf("emulator: key pressed %s", p.Key)
		return reply(env, codeParams{Code: ocast.MediaCodeSuccess})
	default:
		e.logger.Warnf("emulator: unknown input command %q", env.Message.Data.Name)
		return reply(env, codeParams{Code: ocast.MediaCodeNoImplementation})
	}
}

// SetUpdateStatus changes what the settings service reports, letting the
// simulator script firmware update sequences.
func (e *Emulator) SetUpdateStatus(status ocast.UpdateStatus) *ocast.DeviceLayer {
	e.mu.Lock()
	e.update = status
	e.mu.Unlock()
	return e.event(ocast.DomainSettings, ocast.ServiceSettingsDevice, ocast.SettingsEventUpdateStatus, struct {
		State    string `json:"state"`
		Version  string `json:"version"`
		Progress int    `json:"progress"`
	}{status.State, status.Version, status.Progress})
}

// usn is the unique service name advertised in probe responses.
func (e *Emulator) usn() string {
	return fmt.Sprintf("uuid:%s::%s", e.cfg.UDN, e.cfg.SearchTarget)
}
