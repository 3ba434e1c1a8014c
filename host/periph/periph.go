// Package periph backs the core SPI and GPIO drivers with periph.io, for
// running the EEPROM session from a Linux single-board computer through
// spidev and the GPIO character device.
//
// The spidev port is opened with spi.NoCS: chip select is a plain GPIO line
// driven by the session, so one window can span several Tx calls.
package periph

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"spieeprom/core"
)

// Init loads the periph host drivers. Call once before opening ports.
func Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph host init")
	}
	return nil
}

type txer interface {
	Tx(w, r []byte) error
}

// SPIDriver implements core.SPIDriver on a periph SPI port.
type SPIDriver struct {
	mu   sync.Mutex
	name string

	connect func(f physic.Frequency, mode spi.Mode, bits int) (txer, error)
	close   func() error
	conn    txer
}

// OpenSPI opens a port by spireg name ("SPI0.0", "/dev/spidev0.0", or ""
// for the first one registered).
func OpenSPI(name string) (*SPIDriver, error) {
	port, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open SPI port %q", name)
	}
	return &SPIDriver{
		name: port.String(),
		connect: func(f physic.Frequency, mode spi.Mode, bits int) (txer, error) {
			return port.Connect(f, mode, bits)
		},
		close: port.Close,
	}, nil
}

// String returns the port name.
func (d *SPIDriver) String() string {
	return d.name
}

// Configure connects the port with the requested mode and clock rate.
func (d *SPIDriver) Configure(config core.SPIConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !config.Mode.Valid() {
		return errors.Errorf("invalid SPI mode %d", config.Mode)
	}
	mode := spi.Mode(config.Mode) | spi.NoCS

	conn, err := d.connect(physic.Hertz*physic.Frequency(config.Rate), mode, int(config.BitWidth))
	if err != nil {
		return errors.Wrapf(err, "connect %s", d.name)
	}
	d.conn = conn
	return nil
}

// Tx performs a full-duplex transfer; r may be nil.
func (d *SPIDriver) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return errors.New("SPI port not configured")
	}
	if r == nil {
		r = make([]byte, len(w))
	}
	return d.conn.Tx(w, r)
}

// Transfer exchanges a single byte.
func (d *SPIDriver) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := d.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// Close releases the port.
func (d *SPIDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.conn = nil
	if d.close == nil {
		return nil
	}
	return d.close()
}

// GPIODriver implements core.GPIODriver on periph GPIO pins, looked up by
// their GPIO number.
type GPIODriver struct {
	mu     sync.Mutex
	lookup func(name string) gpio.PinIO
	pins   map[core.GPIOPin]gpio.PinIO
}

// NewGPIODriver returns a driver resolving pins through gpioreg.
func NewGPIODriver() *GPIODriver {
	return &GPIODriver{
		lookup: gpioreg.ByName,
		pins:   make(map[core.GPIOPin]gpio.PinIO),
	}
}

// ConfigureOutput configures a pin as an output, initially high. Both lines
// the EEPROM session drives (chip select, hold) idle high.
func (d *GPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.pins[pin]; exists {
		return nil
	}

	p := d.lookup(strconv.Itoa(int(pin)))
	if p == nil {
		return errors.Errorf("GPIO%d not found", pin)
	}
	if err := p.Out(gpio.High); err != nil {
		return errors.Wrapf(err, "configure GPIO%d as output", pin)
	}
	d.pins[pin] = p
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *GPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, exists := d.pins[pin]
	if !exists {
		return errors.Errorf("GPIO%d not configured as output", pin)
	}
	return p.Out(gpio.Level(value))
}

// GetPin reads the current pin state
func (d *GPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, exists := d.pins[pin]
	if !exists {
		return false, errors.Errorf("GPIO%d not configured", pin)
	}
	return bool(p.Read()), nil
}
