package serial

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for the board's
// diagnostic console
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100, // 100ms read timeout
	}
}

// Monitor reads console lines from r and passes each, without its line
// terminator, to handle until ctx is done or r fails.
//
// A port opened with a read timeout reports io.EOF when the line is idle;
// Monitor treats that as "no data yet" and checks ctx again.
func Monitor(ctx context.Context, r io.Reader, handle func(line string)) error {
	reader := bufio.NewReader(r)
	var partial strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := reader.ReadString('\n')
		partial.WriteString(chunk)
		if strings.HasSuffix(chunk, "\n") {
			handle(strings.TrimRight(partial.String(), "\r\n"))
			partial.Reset()
		}

		if err != nil && err != io.EOF {
			return err
		}
	}
}
