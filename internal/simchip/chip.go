// Package simchip models a 25xx-family SPI EEPROM behind the core SPI and
// GPIO driver interfaces. It records every chip-select window so framing
// can be checked, and can inject transport faults and a stuck write cycle.
package simchip

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"spieeprom/core"
)

// Opcodes understood by the model
const (
	opWRSR  = 0x01
	opWRITE = 0x02
	opREAD  = 0x03
	opWRDI  = 0x04
	opRDSR  = 0x05
	opWREN  = 0x06
)

const (
	statusWIP      = 0x01
	statusWEL      = 0x02
	statusWritable = 0x8C // WPEN, BP1, BP0
)

// Floating is returned on MISO when the chip is not driving the line.
const Floating byte = 0xFF

// ErrInjected is the default injected transfer error.
var ErrInjected = errors.New("injected transfer fault")

// Frame is one chip-select window as seen on the wire.
type Frame struct {
	MOSI []byte
	MISO []byte
}

// Opcode returns the first byte sent in the window, or 0 for an empty one.
func (f Frame) Opcode() byte {
	if len(f.MOSI) == 0 {
		return 0
	}
	return f.MOSI[0]
}

// Chip is a simulated SPI EEPROM with its chip-select and hold lines.
type Chip struct {
	mu sync.Mutex

	csPin   core.GPIOPin
	holdPin core.GPIOPin
	pins    map[core.GPIOPin]bool
	clock   clock.Clock

	mem      []byte
	pageSize int

	// Bus configuration received through Configure
	Config     core.SPIConfig
	Configured bool

	// Write cycle model
	WriteCycle time.Duration // time the chip stays busy after a commit
	BusyPolls  int           // RDSR replies reporting WIP after a commit
	Stuck      bool          // WIP never clears once a write cycle starts

	// Fault injection: FailTransfer fails the Nth transfer (1-based)
	FailTransfer int
	FailCSAssert bool
	FaultErr     error

	status    byte // WPEN/BP bits
	wel       bool
	busyUntil time.Time
	busyPolls int
	hung      bool
	selected  bool
	cur       *Frame
	transfers int

	// Recorded activity
	Frames         []Frame
	Asserts        int
	Deasserts      int
	StrayTransfers int // transfers with chip select high or hold low
	IgnoredWrites  int // WRITE/WRSR frames without the latch set
	Violations     []string
}

// New returns a chip of size bytes, erased to 0xFF, selected by cs and
// suspended by hold. Chip select and hold start high.
func New(cs, hold core.GPIOPin, size int) *Chip {
	c := &Chip{
		csPin:   cs,
		holdPin: hold,
		pins:    map[core.GPIOPin]bool{cs: true, hold: true},
		clock:   clock.New(),
		mem:     make([]byte, size),
	}
	for i := range c.mem {
		c.mem[i] = 0xFF
	}
	return c
}

// SetClock replaces the clock used for the write cycle model.
func (c *Chip) SetClock(clk clock.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clk
}

// SetPageSize enables page wrap for writes (0 wraps at the end of memory).
func (c *Chip) SetPageSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageSize = n
}

// Memory returns a copy of n bytes at addr.
func (c *Chip) Memory(addr, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = c.mem[(addr+i)%len(c.mem)]
	}
	return out
}

// Load writes data directly into the array, bypassing the protocol.
func (c *Chip) Load(addr int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range data {
		c.mem[(addr+i)%len(c.mem)] = b
	}
}

// Selected reports whether chip select is currently asserted.
func (c *Chip) Selected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Reset clears the recorded activity, leaving memory and latches intact.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Frames = nil
	c.Asserts = 0
	c.Deasserts = 0
	c.StrayTransfers = 0
	c.IgnoredWrites = 0
	c.Violations = nil
	c.transfers = 0
}

// Configure implements core.SPIDriver.
func (c *Chip) Configure(config core.SPIConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if config.BitWidth != 8 {
		return errors.New("simchip: only 8-bit words are supported")
	}
	if !config.Mode.Valid() {
		return errors.New("simchip: invalid SPI mode")
	}
	c.Config = config
	c.Configured = true
	return nil
}

// Tx implements core.SPIDriver. r may be nil.
func (c *Chip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r != nil && len(r) != len(w) {
		return errors.New("simchip: tx and rx buffer lengths must match")
	}
	for i, b := range w {
		in, err := c.transfer(b)
		if err != nil {
			return err
		}
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

// Transfer implements core.SPIDriver.
func (c *Chip) Transfer(b byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transfer(b)
}

// ConfigureOutput implements core.GPIODriver.
func (c *Chip) ConfigureOutput(pin core.GPIOPin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pins[pin]; !ok {
		c.pins[pin] = false
	}
	return nil
}

// SetPin implements core.GPIODriver.
func (c *Chip) SetPin(pin core.GPIOPin, value bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pin == c.csPin {
		if !value && c.FailCSAssert {
			return c.fault()
		}
		if value {
			c.deselect()
		} else {
			c.selectChip()
		}
	}
	c.pins[pin] = value
	return nil
}

// GetPin implements core.GPIODriver.
func (c *Chip) GetPin(pin core.GPIOPin) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pins[pin], nil
}

func (c *Chip) fault() error {
	if c.FaultErr != nil {
		return c.FaultErr
	}
	return ErrInjected
}

func (c *Chip) selectChip() {
	if c.selected {
		c.Violations = append(c.Violations, "chip select asserted twice")
		return
	}
	c.selected = true
	c.Asserts++
	c.cur = &Frame{}
}

func (c *Chip) deselect() {
	if !c.selected {
		return
	}
	c.selected = false
	c.Deasserts++
	f := *c.cur
	c.cur = nil
	c.Frames = append(c.Frames, f)
	c.complete(f)
}

func (c *Chip) busy() bool {
	return c.hung || c.busyPolls > 0 || c.clock.Now().Before(c.busyUntil)
}

func (c *Chip) transfer(out byte) (byte, error) {
	c.transfers++
	if c.FailTransfer > 0 && c.transfers == c.FailTransfer {
		return 0, c.fault()
	}

	if !c.selected || !c.pins[c.holdPin] {
		c.StrayTransfers++
		return Floating, nil
	}

	pos := len(c.cur.MOSI)
	c.cur.MOSI = append(c.cur.MOSI, out)
	in := c.respond(c.cur.MOSI[0], pos)
	c.cur.MISO = append(c.cur.MISO, in)
	return in, nil
}

// respond returns the byte driven on MISO for byte pos of a frame.
func (c *Chip) respond(op byte, pos int) byte {
	if pos == 0 {
		return Floating
	}
	if op == opRDSR {
		st := c.status
		if c.busy() {
			st |= statusWIP
			if c.busyPolls > 0 {
				c.busyPolls--
			}
		}
		if c.wel {
			st |= statusWEL
		}
		return st
	}
	// Everything but RDSR is ignored during a write cycle
	if c.busy() {
		return Floating
	}
	if op == opREAD && pos >= 3 {
		addr := frameAddr(c.cur.MOSI)
		return c.mem[(addr+pos-3)%len(c.mem)]
	}
	return Floating
}

// complete applies a finished frame, as the chip does on chip select rise.
func (c *Chip) complete(f Frame) {
	if len(f.MOSI) == 0 {
		return
	}
	op := f.MOSI[0]
	if c.busy() && op != opRDSR {
		return
	}

	switch op {
	case opWREN:
		if len(f.MOSI) == 1 {
			c.wel = true
		} else {
			c.Violations = append(c.Violations, "WREN frame carried extra bytes")
		}
	case opWRDI:
		c.wel = false
	case opWRITE:
		if !c.wel {
			c.IgnoredWrites++
			return
		}
		if len(f.MOSI) > 3 {
			c.commit(frameAddr(f.MOSI), f.MOSI[3:])
		}
		c.startCycle()
	case opWRSR:
		if !c.wel {
			c.IgnoredWrites++
			return
		}
		if len(f.MOSI) >= 2 {
			c.status = f.MOSI[1] & statusWritable
		}
		c.startCycle()
	}
}

func (c *Chip) startCycle() {
	c.wel = false
	c.hung = c.Stuck
	c.busyPolls = c.BusyPolls
	c.busyUntil = c.clock.Now().Add(c.WriteCycle)
}

func (c *Chip) commit(addr int, data []byte) {
	if c.pageSize == 0 {
		for i, b := range data {
			c.mem[(addr+i)%len(c.mem)] = b
		}
		return
	}
	base := addr - addr%c.pageSize
	off := addr % c.pageSize
	for _, b := range data {
		c.mem[(base+off)%len(c.mem)] = b
		off = (off + 1) % c.pageSize
	}
}

func frameAddr(mosi []byte) int {
	if len(mosi) < 3 {
		return 0
	}
	return int(mosi[1])<<8 | int(mosi[2])
}
