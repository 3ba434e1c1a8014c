//go:build rp2040

package main

import (
	"errors"
	"machine"
	"time"

	"spieeprom/core"
)

// SoftwareSPIDriver implements core.SPIDriver by bit-banging GPIO pins.
// Used when the EEPROM is wired to pins no SPI controller can reach.
type SoftwareSPIDriver struct {
	sclk machine.Pin
	mosi machine.Pin
	miso machine.Pin

	// Calculated delay between clock transitions
	halfPeriod time.Duration

	// CPOL and CPHA derived from mode
	cpol bool // Clock polarity: false = idle low, true = idle high
	cpha bool // Clock phase: false = sample on first edge, true = sample on second edge

	configured bool
}

// NewSoftwareSPIDriver creates a bit-banged driver on the given pins
func NewSoftwareSPIDriver(sclk, mosi, miso machine.Pin) *SoftwareSPIDriver {
	return &SoftwareSPIDriver{sclk: sclk, mosi: mosi, miso: miso}
}

// Configure sets up GPIO pins and timing for the requested mode and rate
func (d *SoftwareSPIDriver) Configure(config core.SPIConfig) error {
	if config.BitWidth != 8 {
		return errors.New("only 8-bit SPI words are supported")
	}
	if !config.Mode.Valid() {
		return errors.New("invalid SPI mode")
	}

	// Two clock transitions per bit, so half period is 1 / (2 * rate)
	if config.Rate > 0 {
		d.halfPeriod = time.Duration(500000000/config.Rate) * time.Nanosecond
	} else {
		// Default to 100kHz if rate is 0
		d.halfPeriod = 5 * time.Microsecond
	}

	d.cpol = config.Mode.CPOL()
	d.cpha = config.Mode.CPHA()

	d.sclk.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.mosi.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.miso.Configure(machine.PinConfig{Mode: machine.PinInput})

	// Set initial clock state based on CPOL
	d.sclk.Set(d.cpol)
	d.mosi.Low()

	d.configured = true
	return nil
}

// Tx performs a software SPI transfer; r may be nil
func (d *SoftwareSPIDriver) Tx(w, r []byte) error {
	if r != nil && len(w) != len(r) {
		return errors.New("tx and rx buffer lengths must match")
	}
	for i := 0; i < len(w); i++ {
		b, err := d.Transfer(w[i])
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = b
		}
	}
	return nil
}

// Transfer transfers a single byte, MSB first
func (d *SoftwareSPIDriver) Transfer(txByte byte) (byte, error) {
	if !d.configured {
		return 0, errors.New("SPI bus not configured")
	}

	var rxByte byte
	for bit := 7; bit >= 0; bit-- {
		d.mosi.Set(txByte&(1<<bit) != 0)

		// CPHA=0: data is valid before the first edge
		if !d.cpha && d.miso.Get() {
			rxByte |= 1 << bit
		}

		d.toggleClock()
		time.Sleep(d.halfPeriod)

		// CPHA=1: sample after the first edge
		if d.cpha && d.miso.Get() {
			rxByte |= 1 << bit
		}

		// Second edge returns the clock to idle
		d.toggleClock()
		time.Sleep(d.halfPeriod)
	}

	return rxByte, nil
}

func (d *SoftwareSPIDriver) toggleClock() {
	d.sclk.Set(!d.sclk.Get())
}
