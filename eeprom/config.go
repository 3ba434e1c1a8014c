package eeprom

import (
	"time"

	"github.com/pkg/errors"

	"spieeprom/core"
)

// WaitPolicy selects how a write waits for the chip's internal write cycle.
type WaitPolicy uint8

const (
	// PollStatus reads the STATUS register until WIP clears, bounded by
	// MaxPolls.
	PollStatus WaitPolicy = iota

	// FixedDelay sleeps WriteDelay. Used for transports without a reliable
	// status read.
	FixedDelay
)

func (p WaitPolicy) String() string {
	switch p {
	case PollStatus:
		return "poll_status"
	case FixedDelay:
		return "fixed_delay"
	default:
		return "unknown"
	}
}

// ParseWaitPolicy accepts the names returned by WaitPolicy.String.
func ParseWaitPolicy(s string) (WaitPolicy, error) {
	switch s {
	case "poll_status", "poll":
		return PollStatus, nil
	case "fixed_delay", "fixed":
		return FixedDelay, nil
	default:
		return 0, errors.Wrapf(ErrInvalidArgument, "unknown wait policy %q", s)
	}
}

// Defaults
const (
	DefaultRate         = 10000000 // 10MHz
	DefaultWriteDelay   = 3 * time.Second
	DefaultPollInterval = time.Millisecond
	DefaultMaxPolls     = 50 // 25xx write cycle is 5ms max; leaves a wide margin
)

// Config holds the bus, pin and timing configuration for a Session.
type Config struct {
	Mode core.SPIMode // SPI mode, 25xx parts accept 0 and 3
	Rate uint32       // Clock rate in Hz

	CSPin   core.GPIOPin // Chip select, active low
	HoldPin core.GPIOPin // HOLD, held high while the session is open
	NoHold  bool         // Board ties HOLD high in hardware

	// PageSize splits writes at page boundaries; 0 sends every write as a
	// single frame.
	PageSize uint16

	WaitPolicy   WaitPolicy
	WriteDelay   time.Duration // FixedDelay duration
	PollInterval time.Duration // PollStatus delay between polls
	MaxPolls     int           // PollStatus bound

	// Debug receives per-operation trace lines. Nil disables tracing.
	Debug core.DebugWriter
}

// DefaultConfig returns a configuration for the given pins with mode 0,
// 10MHz and status polling.
func DefaultConfig(cs, hold core.GPIOPin) *Config {
	return &Config{
		Mode:         core.SPIMode0,
		Rate:         DefaultRate,
		CSPin:        cs,
		HoldPin:      hold,
		WaitPolicy:   PollStatus,
		WriteDelay:   DefaultWriteDelay,
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
}

// applyDefaults fills in missing configuration values
func (c *Config) applyDefaults() {
	if c.Rate == 0 {
		c.Rate = DefaultRate
	}
	if c.WriteDelay == 0 {
		c.WriteDelay = DefaultWriteDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPolls == 0 {
		c.MaxPolls = DefaultMaxPolls
	}
	if c.Debug == nil {
		c.Debug = core.NopDebugWriter
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return errors.Wrapf(ErrInvalidArgument, "invalid SPI mode %d", c.Mode)
	}
	if !c.NoHold && c.HoldPin == c.CSPin {
		return errors.Wrapf(ErrInvalidArgument, "chip select and hold share pin %d", c.CSPin)
	}
	switch c.WaitPolicy {
	case PollStatus, FixedDelay:
	default:
		return errors.Wrapf(ErrInvalidArgument, "invalid wait policy %d", c.WaitPolicy)
	}
	if c.MaxPolls < 0 {
		return errors.Wrapf(ErrInvalidArgument, "negative poll bound %d", c.MaxPolls)
	}
	if c.WriteDelay < 0 || c.PollInterval < 0 {
		return errors.Wrap(ErrInvalidArgument, "negative delay")
	}
	return nil
}
