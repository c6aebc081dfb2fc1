package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
)

var (
	// ErrMalformedPayload is returned for payloads that are neither JSON, a MAC
	// address nor a device name (empty or not UTF-8).
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrNoTargetSpecified is returned for JSON objects without mac_address and device.
	ErrNoTargetSpecified = errors.New("no mac_address or device specified")

	// ErrDeviceNameUnsupported is returned when a device name is given but no
	// device directory is configured.
	ErrDeviceNameUnsupported = errors.New("device names are not supported without a device directory")

	// ErrDeviceNotFound matches every *DeviceNotFoundError.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrInvalidMACAddress is an alias of models.ErrInvalidMACAddress.
	ErrInvalidMACAddress = models.ErrInvalidMACAddress
)

// DeviceNotFoundError is returned when a device name is not in the directory.
type DeviceNotFoundError struct {
	Name  string
	Known []string // configured device names, sorted
}

func (e *DeviceNotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("device %q not found (no devices configured)", e.Name)
	}
	return fmt.Sprintf("device %q not found (known devices: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Is makes errors.Is(err, ErrDeviceNotFound) hold.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// OutcomeOf maps an error returned by Resolve to a message outcome.
func OutcomeOf(err error) models.Outcome {
	switch {
	case err == nil:
		return models.OutcomeWoken
	case errors.Is(err, ErrInvalidMACAddress):
		return models.OutcomeInvalidMACAddress
	case errors.Is(err, ErrNoTargetSpecified):
		return models.OutcomeNoTargetSpecified
	case errors.Is(err, ErrDeviceNameUnsupported):
		return models.OutcomeDeviceNameUnsupported
	case errors.Is(err, ErrDeviceNotFound):
		return models.OutcomeDeviceNotFound
	default:
		return models.OutcomeMalformedPayload
	}
}
