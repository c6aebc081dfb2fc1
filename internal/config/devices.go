package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bradmatt275/wake-from-mqtt/internal/models"
	"gopkg.in/yaml.v3"
)

// devicesFile is the document layout of a standalone devices file.
type devicesFile struct {
	Devices []models.DeviceConfig `yaml:"devices"`
}

// LoadDevicesFile reads a YAML devices file.
func LoadDevicesFile(path string) ([]models.DeviceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening devices file: %w", err)
	}
	defer func() { _ = f.Close() }()

	devices, err := DecodeDevices(f)
	if err != nil {
		return nil, fmt.Errorf("devices file %s: %w", path, err)
	}
	return devices, nil
}

// DecodeDevices decodes a devices document. Unknown fields are rejected.
func DecodeDevices(r io.Reader) ([]models.DeviceConfig, error) {
	var doc devicesFile

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}

	if doc.Devices == nil {
		return []models.DeviceConfig{}, nil
	}
	return doc.Devices, nil
}
