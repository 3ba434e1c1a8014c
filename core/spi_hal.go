package core

import "tinygo.org/x/drivers"

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

// Supported SPI modes
const (
	SPIMode0 SPIMode = 0
	SPIMode1 SPIMode = 1
	SPIMode2 SPIMode = 2
	SPIMode3 SPIMode = 3
)

// SPIConfig holds the configuration for an SPI bus
type SPIConfig struct {
	BitWidth uint8   // Word size in bits, the EEPROM protocol only uses 8
	Mode     SPIMode // SPI mode (0-3)
	Rate     uint32  // Clock rate in Hz
}

// CPOL reports the clock idle level for the mode.
func (m SPIMode) CPOL() bool { return m&0x2 != 0 }

// CPHA reports whether data is sampled on the second clock edge.
func (m SPIMode) CPHA() bool { return m&0x1 != 0 }

// Valid reports whether m is one of the four standard modes.
func (m SPIMode) Valid() bool { return m <= SPIMode3 }

// SPIDriver is the abstract SPI interface that core code uses.
// Platform-specific implementations handle actual hardware control.
//
// The embedded drivers.SPI is the TinyGo bus contract: Transfer exchanges
// exactly one byte for one byte, Tx exchanges equal-length buffers. Both
// block until the bytes have been fully clocked. Chip select is not
// driven by the SPI driver; it is a separate GPIO line.
type SPIDriver interface {
	drivers.SPI

	// Configure sets up the bus with the specified parameters.
	// Called once before the first transfer.
	Configure(config SPIConfig) error
}
