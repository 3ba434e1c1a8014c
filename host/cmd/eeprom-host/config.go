package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"spieeprom/core"
	"spieeprom/eeprom"
	"spieeprom/host/serial"
)

// HostConfig describes the wiring of an EEPROM to a Linux board and the
// serial port of a board running the firmware demo.
type HostConfig struct {
	SPIPort  string `json:"spi_port"` // spireg name, "" for the first port
	CSPin    uint32 `json:"cs_pin"`
	HoldPin  uint32 `json:"hold_pin"`
	NoHold   bool   `json:"no_hold"`
	Mode     uint8  `json:"mode"`
	Rate     uint32 `json:"rate"`
	PageSize uint16 `json:"page_size"`

	WaitPolicy     string `json:"wait_policy"`
	WriteDelayMS   int    `json:"write_delay_ms"`
	PollIntervalUS int    `json:"poll_interval_us"`
	MaxPolls       int    `json:"max_polls"`

	Serial SerialConfig `json:"serial"`
}

// SerialConfig is the console port for the monitor command.
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// LoadConfig parses a JSON configuration and applies defaults
func LoadConfig(jsonData []byte) (*HostConfig, error) {
	var config HostConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadConfigFile reads and parses path
func LoadConfigFile(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return LoadConfig(data)
}

// DefaultHostConfig returns the wiring used on a Raspberry Pi: SPI0.0 with
// chip select moved to GPIO8 as a plain output and HOLD on GPIO25.
func DefaultHostConfig() *HostConfig {
	config := &HostConfig{
		SPIPort: "SPI0.0",
		CSPin:   8,
		HoldPin: 25,
	}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *HostConfig) {
	if config.Rate == 0 {
		config.Rate = eeprom.DefaultRate
	}
	if config.WaitPolicy == "" {
		config.WaitPolicy = eeprom.PollStatus.String()
	}
	if config.WriteDelayMS == 0 {
		config.WriteDelayMS = int(eeprom.DefaultWriteDelay / time.Millisecond)
	}
	if config.PollIntervalUS == 0 {
		config.PollIntervalUS = int(eeprom.DefaultPollInterval / time.Microsecond)
	}
	if config.MaxPolls == 0 {
		config.MaxPolls = eeprom.DefaultMaxPolls
	}
	if config.Serial.Device == "" {
		config.Serial.Device = "/dev/ttyACM0"
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = serial.DefaultConfig("").Baud
	}
}

// SessionConfig converts to the driver configuration
func (c *HostConfig) SessionConfig() (*eeprom.Config, error) {
	policy, err := eeprom.ParseWaitPolicy(c.WaitPolicy)
	if err != nil {
		return nil, err
	}

	cfg := eeprom.DefaultConfig(core.GPIOPin(c.CSPin), core.GPIOPin(c.HoldPin))
	cfg.NoHold = c.NoHold
	cfg.Mode = core.SPIMode(c.Mode)
	cfg.Rate = c.Rate
	cfg.PageSize = c.PageSize
	cfg.WaitPolicy = policy
	cfg.WriteDelay = time.Duration(c.WriteDelayMS) * time.Millisecond
	cfg.PollInterval = time.Duration(c.PollIntervalUS) * time.Microsecond
	cfg.MaxPolls = c.MaxPolls

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SerialPortConfig returns the monitor port configuration
func (c *HostConfig) SerialPortConfig() *serial.Config {
	cfg := serial.DefaultConfig(c.Serial.Device)
	cfg.Baud = c.Serial.Baud
	return cfg
}
