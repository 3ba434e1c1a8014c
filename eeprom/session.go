package eeprom

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"spieeprom/core"
)

// Session owns one EEPROM on one SPI bus: the SPI driver, the chip-select
// line and the hold line. All operations are serialized; one frame is on
// the bus at a time.
type Session struct {
	mu sync.Mutex

	spi   core.SPIDriver
	gpio  core.GPIODriver
	cfg   Config
	clock clock.Clock

	// latch mirrors the chip's write enable latch: set by a completed WREN
	// frame, consumed by the next WRITE or WRSR frame, cleared by WRDI.
	latch  bool
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock used for write-cycle waits.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// NewSession configures the lines and the bus and returns a ready session.
// Chip select is driven high (deselected) and hold high (not suspended)
// before the bus is configured.
func NewSession(spi core.SPIDriver, gpio core.GPIODriver, cfg *Config, opts ...Option) (*Session, error) {
	if spi == nil || gpio == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil SPI or GPIO driver")
	}
	if cfg == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil config")
	}

	s := &Session{
		spi:   spi,
		gpio:  gpio,
		cfg:   *cfg,
		clock: clock.New(),
	}
	s.cfg.applyDefaults()
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := gpio.ConfigureOutput(s.cfg.CSPin); err != nil {
		return nil, errors.Wrapf(err, "configure chip select pin %d", s.cfg.CSPin)
	}
	if err := gpio.SetPin(s.cfg.CSPin, true); err != nil {
		return nil, errors.Wrap(err, "deselect chip")
	}

	if !s.cfg.NoHold {
		if err := gpio.ConfigureOutput(s.cfg.HoldPin); err != nil {
			return nil, errors.Wrapf(err, "configure hold pin %d", s.cfg.HoldPin)
		}
		if err := gpio.SetPin(s.cfg.HoldPin, true); err != nil {
			return nil, errors.Wrap(err, "release hold")
		}
	}

	err := spi.Configure(core.SPIConfig{
		BitWidth: 8,
		Mode:     s.cfg.Mode,
		Rate:     s.cfg.Rate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "configure SPI bus")
	}

	return s, nil
}

// Config returns a copy of the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// ReadBytes reads n bytes starting at addr.
func (s *Session) ReadBytes(ctx context.Context, addr uint16, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "read length %d", n)
	}
	buf := make([]byte, n)
	if err := s.Read(ctx, addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read fills buf with len(buf) bytes starting at addr. buf is only written
// once the whole frame has been received; on error it is left untouched.
func (s *Session) Read(ctx context.Context, addr uint16, buf []byte) error {
	if len(buf) == 0 {
		return errors.Wrap(ErrInvalidArgument, "zero-length read")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return err
	}

	s.trace("READ EEPROM", OpREAD, addr, len(buf))

	rx := make([]byte, len(buf))
	err := s.frame("read", OpREAD, func() error {
		if err := s.spi.Tx(EncodeRead(addr), nil); err != nil {
			return err
		}
		for i := range rx {
			b, err := s.spi.Transfer(Dummy)
			if err != nil {
				return err
			}
			rx[i] = b
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Debug("Read bytes " + core.HexBytes(rx))
	copy(buf, rx)
	return nil
}

// Write stores data starting at addr: a WREN frame, a WRITE frame carrying
// the data, then a wait for the write cycle per the configured policy.
//
// With a non-zero PageSize the data is split at page boundaries and each
// chunk gets its own WREN/WRITE/wait cycle.
func (s *Session) Write(ctx context.Context, addr uint16, data []byte) error {
	if len(data) == 0 {
		return errors.Wrap(ErrInvalidArgument, "zero-length write")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return err
	}

	s.trace("WRITE EEPROM", OpWRITE, addr, len(data))

	for len(data) > 0 {
		chunk := data
		if s.cfg.PageSize > 0 {
			space := int(s.cfg.PageSize - addr%s.cfg.PageSize)
			if len(chunk) > space {
				chunk = chunk[:space]
			}
		}

		if err := s.writeEnable("write"); err != nil {
			return err
		}
		if err := s.writeFrame("write", OpWRITE, EncodeWrite(addr), chunk); err != nil {
			return err
		}
		if err := s.waitWriteCycle(ctx, "write"); err != nil {
			return err
		}

		data = data[len(chunk):]
		addr += uint16(len(chunk))
	}
	return nil
}

// ReadStatus performs one RDSR exchange.
func (s *Session) ReadStatus(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return Status{}, err
	}
	return s.readStatus("status")
}

// WriteStatus writes the STATUS register (block protect and WPEN bits) and
// waits for the write cycle.
func (s *Session) WriteStatus(ctx context.Context, value byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return err
	}

	s.cfg.Debug("Operation start : WRITE STATUS " + core.Hex8(value))

	if err := s.writeEnable("write_status"); err != nil {
		return err
	}
	if err := s.writeFrame("write_status", OpWRSR, EncodeWriteStatus(value), nil); err != nil {
		return err
	}
	return s.waitWriteCycle(ctx, "write_status")
}

// WriteEnable sends a lone WREN frame.
func (s *Session) WriteEnable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.writeEnable("write_enable")
}

// WriteDisable sends a lone WRDI frame, clearing the write enable latch.
func (s *Session) WriteDisable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(ctx); err != nil {
		return err
	}

	s.latch = false
	return s.frame("write_disable", OpWRDI, func() error {
		return s.spi.Tx(EncodeWriteDisable(), nil)
	})
}

// Close deselects the chip and marks the session unusable. Hold is left
// high.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.latch = false
	return s.gpio.SetPin(s.cfg.CSPin, true)
}

func (s *Session) ready(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// frame runs fn inside one chip-select window. Chip select is released on
// every return path, including a failed assert; a release failure is
// combined with any transfer error.
func (s *Session) frame(op string, opcode Opcode, fn func() error) (err error) {
	defer func() {
		if rerr := s.gpio.SetPin(s.cfg.CSPin, true); rerr != nil {
			err = multierr.Append(err, &BusError{Op: op, Opcode: opcode, Err: rerr})
		}
	}()

	if err := s.gpio.SetPin(s.cfg.CSPin, false); err != nil {
		return &BusError{Op: op, Opcode: opcode, Err: err}
	}
	if err := fn(); err != nil {
		return &BusError{Op: op, Opcode: opcode, Err: err}
	}
	return nil
}

func (s *Session) writeEnable(op string) error {
	s.latch = false
	err := s.frame(op, OpWREN, func() error {
		return s.spi.Tx(EncodeWriteEnable(), nil)
	})
	if err != nil {
		return err
	}
	s.latch = true
	return nil
}

// writeFrame sends header followed by data in one window. The latch is
// consumed whether or not the frame succeeds.
func (s *Session) writeFrame(op string, opcode Opcode, header, data []byte) error {
	if !s.latch {
		return errors.Wrapf(ErrWriteNotEnabled, "%s frame without WREN", opcode)
	}
	s.latch = false

	return s.frame(op, opcode, func() error {
		if err := s.spi.Tx(header, nil); err != nil {
			return err
		}
		for _, b := range data {
			if _, err := s.spi.Transfer(b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Session) readStatus(op string) (Status, error) {
	var reply byte
	err := s.frame(op, OpRDSR, func() error {
		if err := s.spi.Tx(EncodeStatusRead(), nil); err != nil {
			return err
		}
		b, err := s.spi.Transfer(Dummy)
		if err != nil {
			return err
		}
		reply = b
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(reply), nil
}

// waitWriteCycle blocks until the chip has committed the last write frame.
func (s *Session) waitWriteCycle(ctx context.Context, op string) error {
	if s.cfg.WaitPolicy == FixedDelay {
		s.cfg.Debug("Starting to wait for write op.")
		if err := s.sleep(ctx, s.cfg.WriteDelay); err != nil {
			return err
		}
		s.cfg.Debug("End of write op.")
		return nil
	}

	for i := 0; i < s.cfg.MaxPolls; i++ {
		st, err := s.readStatus(op)
		if err != nil {
			return err
		}
		if !st.WriteInProgress {
			return nil
		}
		s.cfg.Debug("Waiting, STATUS = " + core.Hex8(st.Raw))
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
	return errors.Wrapf(ErrTimeout, "%s: write in progress after %d polls", op, s.cfg.MaxPolls)
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := s.clock.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// trace emits the operation header lines.
func (s *Session) trace(name string, opcode Opcode, addr uint16, n int) {
	hi, lo := SplitAddress(addr)
	s.cfg.Debug("-----Operation start : " + name)
	s.cfg.Debug(" Length = " + core.Itoa(n))
	s.cfg.Debug(" Address = " + core.Itoa(int(addr)))
	s.cfg.Debug(" Target addr HIGH = " + core.Itoa(int(hi)))
	s.cfg.Debug(" Target addr LOW = " + core.Itoa(int(lo)))
	s.cfg.Debug(" Opcode = " + core.Hex8(byte(opcode)))
}
