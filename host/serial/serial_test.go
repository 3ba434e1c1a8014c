package serial

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// scriptedReader returns each chunk from one Read call, then io.EOF like
// an idle port.
type scriptedReader struct {
	chunks []string
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Device != "/dev/ttyACM0" || cfg.Baud != 115200 || cfg.ReadTimeout != 100 {
		t.Errorf("Unexpected default config %+v", cfg)
	}
}

func TestMonitorSplitsLines(t *testing.T) {
	r := &scriptedReader{chunks: []string{
		"Initializing board.\r\n",
		"STATUS : [0",
		"0]\n",
		"CRC written = 1BB4 read = 1BB4 PASS\n",
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lines []string
	err := Monitor(ctx, r, func(line string) {
		lines = append(lines, line)
		if len(lines) == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	expected := []string{
		"Initializing board.",
		"STATUS : [00]",
		"CRC written = 1BB4 read = 1BB4 PASS",
	}
	if diff := cmp.Diff(expected, lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestMonitorReturnsReadErrors(t *testing.T) {
	err := Monitor(context.Background(), brokenReader{}, func(string) {})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestOpenRequiresConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}
