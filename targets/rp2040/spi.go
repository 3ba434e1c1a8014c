//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"

	"spieeprom/core"
)

// spiPins is one SPI controller and the GPIO pins routed to it
type spiPins struct {
	spi  *machine.SPI // SPI controller (SPI0 or SPI1)
	sck  machine.Pin  // Clock pin
	sdo  machine.Pin  // Master Out Slave In
	sdi  machine.Pin  // Master In Slave Out
	name string       // Human-readable name
}

// RP2040SPIDriver implements core.SPIDriver using TinyGo's machine.SPI
type RP2040SPIDriver struct {
	mu         sync.Mutex
	pins       spiPins
	configured bool
}

// NewRP2040SPIDriver creates a driver for the given controller and pins
func NewRP2040SPIDriver(pins spiPins) *RP2040SPIDriver {
	return &RP2040SPIDriver{pins: pins}
}

// Configure sets up the SPI controller with specified parameters
func (d *RP2040SPIDriver) Configure(config core.SPIConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if config.BitWidth != 8 {
		return errors.New("only 8-bit SPI words are supported")
	}
	if !config.Mode.Valid() {
		return errors.New("invalid SPI mode")
	}

	// TinyGo's SPI mode numbers match standard SPI modes
	err := d.pins.spi.Configure(machine.SPIConfig{
		Frequency: config.Rate,
		SCK:       d.pins.sck,
		SDO:       d.pins.sdo, // SDO = Serial Data Out (MOSI)
		SDI:       d.pins.sdi, // SDI = Serial Data In (MISO)
		Mode:      uint8(config.Mode),
	})
	if err != nil {
		return err
	}

	d.configured = true
	return nil
}

// Tx performs a full-duplex transfer; r may be nil for write-only frames
func (d *RP2040SPIDriver) Tx(w, r []byte) error {
	if !d.configured {
		return errors.New("SPI bus not configured")
	}
	return d.pins.spi.Tx(w, r)
}

// Transfer exchanges a single byte
func (d *RP2040SPIDriver) Transfer(b byte) (byte, error) {
	if !d.configured {
		return 0, errors.New("SPI bus not configured")
	}
	return d.pins.spi.Transfer(b)
}
