// Package demo runs the persistence check: read what the EEPROM holds,
// write a known message, read it back and report over the console.
package demo

import (
	"context"

	"go.uber.org/multierr"

	"spieeprom/core"
	"spieeprom/eeprom"
)

// Defaults used by the board demo
const (
	DefaultAddress = 0xFF
	DefaultFill    = 0xFA
	DefaultMessage = "HELLOWORLD"
)

// Options selects where and what the demo writes.
type Options struct {
	Address uint16
	Message []byte
	Fill    byte // pre-fill for read buffers, shows whether a read landed
}

// DefaultOptions returns the board demo parameters: "HELLOWORLD" at 0xFF.
func DefaultOptions() Options {
	return Options{
		Address: DefaultAddress,
		Message: []byte(DefaultMessage),
		Fill:    DefaultFill,
	}
}

// Report is the outcome of one run.
type Report struct {
	Initial  []byte
	ReadBack []byte
	Written  uint16 // checksum of the message
	Read     uint16 // checksum of the read back buffer
	Match    bool
}

// Session is the part of eeprom.Session the demo uses.
type Session interface {
	Read(ctx context.Context, addr uint16, buf []byte) error
	Write(ctx context.Context, addr uint16, data []byte) error
	ReadStatus(ctx context.Context) (eeprom.Status, error)
}

// Run executes the sequence. Every failure is reported on the console and
// the sequence carries on; the returned error combines all of them.
func Run(ctx context.Context, sess Session, console *core.Console, opts Options) (*Report, error) {
	var errs error
	fail := func(what string, err error) {
		console.WriteLine("ERROR: " + what + ": " + err.Error())
		errs = multierr.Append(errs, err)
	}

	n := len(opts.Message)
	report := &Report{
		Initial:  make([]byte, n),
		ReadBack: make([]byte, n),
		Written:  eeprom.Checksum(opts.Message),
	}

	console.WriteLine("Initializing board.")
	if err := DumpStatus(ctx, sess, console); err != nil {
		fail("read status", err)
	}

	console.WriteLine("Reading initial EEPROM data")
	fill(report.Initial, opts.Fill)
	if err := sess.Read(ctx, opts.Address, report.Initial); err != nil {
		fail("initial read", err)
	}
	console.WriteHex("", report.Initial)

	console.WriteHex("Printing data : ", opts.Message)
	if err := sess.Write(ctx, opts.Address, opts.Message); err != nil {
		fail("write", err)
	}

	fill(report.ReadBack, opts.Fill)
	if err := sess.Read(ctx, opts.Address, report.ReadBack); err != nil {
		fail("read back", err)
	}
	console.WriteHex("Re-reading write result :", report.ReadBack)

	if err := DumpStatus(ctx, sess, console); err != nil {
		fail("read status", err)
	}

	report.Read = eeprom.Checksum(report.ReadBack)
	report.Match = report.Read == report.Written && string(report.ReadBack) == string(opts.Message)

	verdict := "MISMATCH"
	if report.Match {
		verdict = "PASS"
	}
	console.WriteLine("CRC written = " + core.Hex16(report.Written) +
		" read = " + core.Hex16(report.Read) + " " + verdict)

	return report, errs
}

// DumpStatus prints the STATUS register as "STATUS : [XX]".
func DumpStatus(ctx context.Context, sess Session, console *core.Console) error {
	st, err := sess.ReadStatus(ctx)
	if err != nil {
		return err
	}
	console.WriteLine("STATUS : [" + core.Hex8(st.Raw) + "]")
	return nil
}

func fill(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}
