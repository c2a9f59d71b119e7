// Package ocast implements the device-layer protocol spoken over the
// websocket channel and the session engine on top of it: envelope
// encoding/decoding, reply correlation, event demultiplexing, the reference
// device session state machine and the device center facade.
package ocast

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the three frame kinds on the channel.
type MessageType string

const (
	TypeCommand MessageType = "command"
	TypeReply   MessageType = "reply"
	TypeEvent   MessageType = "event"
)

// Destination domains. Browser-domain commands are handled by the running
// web application and are gated behind an implicit application start;
// settings-domain commands go to the device itself and bypass that gate.
const (
	DomainBrowser  = "browser"
	DomainSettings = "settings"
)

// ControllerID is the identity this SDK puts in the src field of outbound
// commands.
const ControllerID = "*"

// Device-layer status values a reply envelope may carry.
const (
	StatusOK                    = "ok"
	StatusJSONFormatError       = "json_format_error"
	StatusValueFormatError      = "value_format_error"
	StatusMissingMandatoryField = "missing_mandatory_field"
	StatusForbiddenUnsecureMode = "forbidden_unsecure_mode"
	StatusInternalError         = "internal_error"
)

// Service identifiers.
const (
	ServiceMedia          = "org.ocast.media"
	ServiceWebApp         = "org.ocast.webapp"
	ServiceSettingsDevice = "org.ocast.settings.device"
	ServiceSettingsInput  = "org.ocast.settings.input"
)

// DeviceLayer is the envelope every frame wears.
type DeviceLayer struct {
	Src     string           `json:"src"`
	Dst     string           `json:"dst"`
	Type    MessageType      `json:"type"`
	Status  string           `json:"status,omitempty"`
	ID      int64            `json:"id"`
	Message ApplicationLayer `json:"message"`
}

// ApplicationLayer routes a frame to one service.
type ApplicationLayer struct {
	Service string    `json:"service"`
	Data    DataLayer `json:"data"`
}

// DataLayer names the command or event and carries its parameters. Params
// and Options stay raw so replies can be decoded into typed structures by
// whoever knows the expected shape.
type DataLayer struct {
	Name    string          `json:"name"`
	Params  json.RawMessage `json:"params,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
}

// Message is one service payload before enveloping: what callers hand to
// Send and what events are delivered as.
type Message struct {
	Service string
	Name    string
	Params  any
	Options any
}

// newCommand envelopes a message as an outbound command frame.
func newCommand(id int64, domain string, msg Message) ([]byte, error) {
	params := msg.Params
	if params == nil {
		params = struct{}{}
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("ocast: encoding params of %s/%s: %w", msg.Service, msg.Name, err)
	}
	data := DataLayer{Name: msg.Name, Params: rawParams}
	if msg.Options != nil {
		rawOptions, err := json.Marshal(msg.Options)
		if err != nil {
			return nil, fmt.Errorf("ocast: encoding options of %s/%s: %w", msg.Service, msg.Name, err)
		}
		data.Options = rawOptions
	}
	env := DeviceLayer{
		Src:  ControllerID,
		Dst:  domain,
		Type: TypeCommand,
		ID:   id,
		Message: ApplicationLayer{
			Service: msg.Service,
			Data:    data,
		},
	}
	return json.Marshal(env)
}

// decodeDeviceLayer parses an inbound frame.
func decodeDeviceLayer(payload []byte) (*DeviceLayer, error) {
	var env DeviceLayer
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("ocast: decoding frame: %w", err)
	}
	return &env, nil
}

// replyCode probes a reply's params for the embedded status code. A missing
// code field means success.
func replyCode(params json.RawMessage) (int, error) {
	if len(params) == 0 {
		return 0, nil
	}
	var probe struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return 0, fmt.Errorf("ocast: decoding reply params: %w", err)
	}
	if probe.Code == nil {
		return 0, nil
	}
	return *probe.Code, nil
}
