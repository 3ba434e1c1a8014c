package main

import (
	"errors"
	"testing"
	"time"

	"spieeprom/eeprom"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"spi_port": "SPI1.0", "cs_pin": 5, "hold_pin": 6}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SPIPort != "SPI1.0" {
		t.Errorf("Expected SPI1.0, got %s", cfg.SPIPort)
	}
	if cfg.Rate != eeprom.DefaultRate {
		t.Errorf("Expected rate %d, got %d", eeprom.DefaultRate, cfg.Rate)
	}
	if cfg.WaitPolicy != "poll_status" {
		t.Errorf("Expected poll_status, got %s", cfg.WaitPolicy)
	}
	if cfg.WriteDelayMS != 3000 {
		t.Errorf("Expected 3000ms write delay, got %d", cfg.WriteDelayMS)
	}
	if cfg.MaxPolls != eeprom.DefaultMaxPolls {
		t.Errorf("Expected %d polls, got %d", eeprom.DefaultMaxPolls, cfg.MaxPolls)
	}
	if cfg.Serial.Device != "/dev/ttyACM0" || cfg.Serial.Baud != 115200 {
		t.Errorf("Expected /dev/ttyACM0 at 115200, got %s at %d", cfg.Serial.Device, cfg.Serial.Baud)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	if _, err := LoadConfig([]byte(`{"cs_pin": "eight"}`)); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestSessionConfig(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"cs_pin": 8,
		"hold_pin": 25,
		"mode": 3,
		"page_size": 64,
		"wait_policy": "fixed_delay",
		"write_delay_ms": 10,
		"poll_interval_us": 500
	}`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	sc, err := cfg.SessionConfig()
	if err != nil {
		t.Fatalf("SessionConfig failed: %v", err)
	}
	if sc.CSPin != 8 || sc.HoldPin != 25 {
		t.Errorf("Expected CS 8 HOLD 25, got CS %d HOLD %d", sc.CSPin, sc.HoldPin)
	}
	if sc.Mode != 3 {
		t.Errorf("Expected mode 3, got %d", sc.Mode)
	}
	if sc.PageSize != 64 {
		t.Errorf("Expected page size 64, got %d", sc.PageSize)
	}
	if sc.WaitPolicy != eeprom.FixedDelay {
		t.Errorf("Expected fixed delay, got %s", sc.WaitPolicy)
	}
	if sc.WriteDelay != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %s", sc.WriteDelay)
	}
	if sc.PollInterval != 500*time.Microsecond {
		t.Errorf("Expected 500us, got %s", sc.PollInterval)
	}
}

func TestSessionConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"policy", `{"cs_pin": 8, "hold_pin": 25, "wait_policy": "sometimes"}`},
		{"mode", `{"cs_pin": 8, "hold_pin": 25, "mode": 4}`},
		{"shared pin", `{"cs_pin": 8, "hold_pin": 8}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig([]byte(tt.json))
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			_, err = cfg.SessionConfig()
			if !errors.Is(err, eeprom.ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestSerialPortConfig(t *testing.T) {
	cfg := DefaultHostConfig()
	cfg.Serial.Device = "/dev/ttyUSB1"
	cfg.Serial.Baud = 250000

	sc := cfg.SerialPortConfig()
	if sc.Device != "/dev/ttyUSB1" || sc.Baud != 250000 {
		t.Errorf("Expected /dev/ttyUSB1 at 250000, got %s at %d", sc.Device, sc.Baud)
	}
	if sc.ReadTimeout != 100 {
		t.Errorf("Expected 100ms read timeout, got %d", sc.ReadTimeout)
	}
}

func TestParseAddressAndHex(t *testing.T) {
	a, err := parseAddress("0x00FF")
	if err != nil || a != 0xFF {
		t.Errorf("Expected 0xFF, got %#x (%v)", a, err)
	}
	if _, err := parseAddress("0x10000"); err == nil {
		t.Error("Expected error for address above 16 bits")
	}

	data, err := parseHex("48454c")
	if err != nil {
		t.Fatalf("parseHex failed: %v", err)
	}
	if string(data) != "HEL" {
		t.Errorf("Expected HEL, got %q", data)
	}
	if _, err := parseHex("123"); err == nil {
		t.Error("Expected error for odd length")
	}
}
