// Package config loads and validates the sample-source configuration
// supplied by the embedding application.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldscale/iqstream/internal/iq"
	"github.com/fieldscale/iqstream/internal/iq/ring"
)

// SourceConfig describes one UDP sample source. The schema matches the
// daemon's command-line flags so the same JSON can back both startup
// configuration and scripted deployments. Fields omitted from the JSON file
// retain their default values, so partial configs are safe.
type SourceConfig struct {
	// Device is the capture interface identifier, e.g. "eth0".
	Device string `json:"device"`

	// Port is the destination UDP port carrying sample payloads.
	Port int `json:"port"`

	// WireFormat names the on-the-wire sample encoding: "cbyte",
	// "c4bits" or "cfloat".
	WireFormat string `json:"wire_format"`

	// Channels is the number of baseband channels multiplexed in each
	// payload (1-4).
	Channels int `json:"channels"`

	// IQSwap exchanges which decoded value is treated as the in-phase
	// component.
	IQSwap bool `json:"iq_swap"`

	// RingCapacity is the shared ring buffer size in bytes.
	RingCapacity int `json:"ring_capacity,omitempty"`

	// ItemSize is the per-sample storage size in bytes the host pipeline
	// uses to size its own downstream buffers.
	ItemSize int `json:"item_size,omitempty"`
}

// DefaultSourceConfig returns the defaults for fields the JSON may omit:
// ring capacity for 1000 maximal UDP payloads and complex64 item storage.
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		WireFormat:   "cbyte",
		Channels:     1,
		RingCapacity: ring.DefaultCapacity,
		ItemSize:     8,
	}
}

// LoadSourceConfig loads a SourceConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size.
func LoadSourceConfig(path string) (*SourceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultSourceConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every field against its allowed range. Configuration
// errors are fatal at load time, never discovered mid-stream.
func (c *SourceConfig) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", c.Port)
	}
	if _, err := iq.ParseWireFormat(c.WireFormat); err != nil {
		return err
	}
	if c.Channels < iq.MinChannels || c.Channels > iq.MaxChannels {
		return fmt.Errorf("channels %d out of range [%d, %d]",
			c.Channels, iq.MinChannels, iq.MaxChannels)
	}
	if c.RingCapacity <= 0 {
		return fmt.Errorf("ring_capacity must be positive, got %d", c.RingCapacity)
	}
	if c.ItemSize <= 0 {
		return fmt.Errorf("item_size must be positive, got %d", c.ItemSize)
	}
	return nil
}

// Format returns the parsed wire format. Validate must have succeeded.
func (c *SourceConfig) Format() iq.WireFormat {
	f, _ := iq.ParseWireFormat(c.WireFormat)
	return f
}
