package models

import "time"

// Message is an inbound pub/sub message, independent of the transport.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Outcome classifies how a message was handled.
type Outcome string

// Message outcomes.
const (
	OutcomeWoken                 Outcome = "woken"
	OutcomeMalformedPayload      Outcome = "malformed_payload"
	OutcomeNoTargetSpecified     Outcome = "no_target_specified"
	OutcomeDeviceNameUnsupported Outcome = "device_name_unsupported"
	OutcomeDeviceNotFound        Outcome = "device_not_found"
	OutcomeInvalidMACAddress     Outcome = "invalid_mac_address"
	OutcomeDispatchFailure       Outcome = "dispatch_failure"
)

// HandleResult holds the result of handling one message.
type HandleResult struct {
	Outcome Outcome
	Target  *WakeTarget // nil if the message did not resolve
	Wake    *WakeResult // nil if no packet was attempted
	Error   error
}
