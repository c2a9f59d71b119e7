package ocast

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongState rejects an operation the session state does not allow,
	// such as connecting while a disconnect is still in flight.
	ErrWrongState = errors.New("ocast: operation not allowed in current state")

	// ErrApplicationNameNotSet rejects application-scoped operations before
	// an application name has been configured on the device.
	ErrApplicationNameNotSet = errors.New("ocast: application name is not set")

	// ErrSocketDisconnected resolves commands still outstanding when the
	// channel goes down.
	ErrSocketDisconnected = errors.New("ocast: socket disconnected")

	// ErrConnectAborted is returned by Connect when a concurrent disconnect
	// tears the session down before the channel is established.
	ErrConnectAborted = errors.New("ocast: connect aborted by disconnect")

	// ErrApplicationStartTimeout is returned when the started application
	// never signals its web socket connection in time.
	ErrApplicationStartTimeout = errors.New("ocast: application start timed out")

	// ErrApplicationStartAborted is returned when a state or application
	// change interrupts a pending application start.
	ErrApplicationStartAborted = errors.New("ocast: application start aborted")
)

// ReplyError carries a failure code embedded in an otherwise well-formed
// reply, reported by the service that handled the command.
type ReplyError struct {
	Code int
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("ocast: command failed with code %d", e.Code)
}

// DeviceLayerError reports a reply whose envelope status was not ok, meaning
// the device rejected the frame before any service saw it.
type DeviceLayerError struct {
	Status string
}

func (e *DeviceLayerError) Error() string {
	return fmt.Sprintf("ocast: device layer error %q", e.Status)
}
