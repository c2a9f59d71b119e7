package ocast

// Settings and web application service command and event names.
const (
	WebAppEventConnectedStatus = "connectedStatus"

	SettingsCommandGetUpdateStatus = "getUpdateStatus"
	SettingsCommandGetDeviceID     = "getDeviceID"
	SettingsEventUpdateStatus      = "updateStatus"

	InputCommandKeyPressed = "keyPressed"
)

// Web application connection statuses carried by connectedStatus events.
const (
	WebAppStatusConnected    = "connected"
	WebAppStatusDisconnected = "disconnected"
)

// Firmware update states.
const (
	UpdateStateNotChecked      = "notChecked"
	UpdateStateUpToDate        = "upToDate"
	UpdateStateNewVersionFound = "newVersionFound"
	UpdateStateDownloading     = "downloading"
	UpdateStateNewVersionReady = "newVersionReady"
	UpdateStateError           = "error"
)

// UpdateStatus is the firmware update snapshot, carried both in
// getUpdateStatus replies and updateStatus events.
type UpdateStatus struct {
	State    string `json:"state"`
	Version  string `json:"version"`
	Progress int    `json:"progress"`
}

// DeviceID is the reply to getDeviceID.
type DeviceID struct {
	ID string `json:"id"`
}

// KeyPressedParams forwards one virtual key press to the device.
type KeyPressedParams struct {
	Key      string `json:"key"`
	Code     string `json:"code"`
	Ctrl     bool   `json:"ctrl"`
	Alt      bool   `json:"alt"`
	Shift    bool   `json:"shift"`
	Meta     bool   `json:"meta"`
	Location int    `json:"location"`
}

// connectedStatusEvent is the payload of a webapp connectedStatus event.
type connectedStatusEvent struct {
	Status string `json:"status"`
}
