package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Delivery modes of a magic packet.
const (
	ModeBroadcast = "broadcast"
	ModeUnicast   = "unicast"
)

// ErrInvalidMACAddress is returned when a value does not look like a MAC-48 address.
var ErrInvalidMACAddress = errors.New("invalid MAC address")

var reMAC = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$|^(?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2}$`)

// IsMACAddress reports whether s is six two-digit hex groups separated
// uniformly by ':' or '-'.
func IsMACAddress(s string) bool {
	return reMAC.MatchString(s)
}

// WOLConfig holds Wake-on-LAN sender settings.
type WOLConfig struct {
	Port        int    // UDP destination port, 9 by default
	BroadcastIP string // used when a target has no IP address
}

// WakeTarget is a resolved request to wake one device.
type WakeTarget struct {
	MACAddress  string
	IPAddress   string // empty means broadcast
	DisplayName string
}

// NewWakeTarget validates mac and builds a target. An empty name is replaced
// with "device-" followed by the last five characters of the MAC address.
func NewWakeTarget(mac, ip, name string) (*WakeTarget, error) {
	if !IsMACAddress(mac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMACAddress, mac)
	}
	if name == "" {
		name = "device-" + mac[len(mac)-5:]
	}
	return &WakeTarget{
		MACAddress:  mac,
		IPAddress:   ip,
		DisplayName: name,
	}, nil
}

// Broadcast reports whether the packet for this target is broadcast.
func (t WakeTarget) Broadcast() bool {
	return t.IPAddress == ""
}

// WakeResult holds the result of a Wake-on-LAN send.
type WakeResult struct {
	Target      WakeTarget
	Mode        string // ModeBroadcast or ModeUnicast
	Destination string // host:port the datagram was written to
	PacketSent  bool
	Duration    time.Duration
	Error       error
}
