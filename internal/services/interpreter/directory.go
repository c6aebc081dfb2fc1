package interpreter

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
)

// Directory is a read-only device table keyed by lowercased name.
// A nil *Directory means no directory is configured; it is safe to share
// between goroutines.
type Directory struct {
	entries map[string]models.DeviceConfig
	names   []string
}

// NewDirectory builds a directory from configured devices. Names must be
// unique case-insensitively and every MAC address must be valid.
func NewDirectory(devices []models.DeviceConfig) (*Directory, error) {
	d := &Directory{
		entries: make(map[string]models.DeviceConfig, len(devices)),
		names:   make([]string, 0, len(devices)),
	}

	for i, dev := range devices {
		if dev.Name == "" {
			return nil, fmt.Errorf("devices[%d]: name is required", i)
		}
		if !models.IsMACAddress(dev.MACAddress) {
			return nil, fmt.Errorf("devices[%d] %q: %w: %q", i, dev.Name, models.ErrInvalidMACAddress, dev.MACAddress)
		}
		if dev.IPAddress != "" && net.ParseIP(dev.IPAddress) == nil {
			return nil, fmt.Errorf("devices[%d] %q: invalid IP address %q", i, dev.Name, dev.IPAddress)
		}

		key := strings.ToLower(dev.Name)
		if existing, ok := d.entries[key]; ok {
			return nil, fmt.Errorf("devices[%d]: name %q duplicates %q", i, dev.Name, existing.Name)
		}
		d.entries[key] = dev
		d.names = append(d.names, dev.Name)
	}

	sort.Strings(d.names)
	return d, nil
}

// Lookup finds a device by case-insensitive name.
func (d *Directory) Lookup(name string) (models.DeviceConfig, bool) {
	if d == nil {
		return models.DeviceConfig{}, false
	}
	dev, ok := d.entries[strings.ToLower(name)]
	return dev, ok
}

// Names returns the configured device names, sorted.
func (d *Directory) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.names...)
}

// Len returns the number of devices.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
