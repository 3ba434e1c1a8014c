package core

import (
	"bytes"
	"testing"
)

func TestItoa(t *testing.T) {
	testCases := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{7, "7"},
		{255, "255"},
		{-42, "-42"},
		{10000000, "10000000"},
	}

	for _, tc := range testCases {
		if got := Itoa(tc.n); got != tc.expected {
			t.Errorf("Itoa(%d): expected %q, got %q", tc.n, tc.expected, got)
		}
	}
}

func TestHexFormatting(t *testing.T) {
	if got := Hex8(0x0F); got != "0F" {
		t.Errorf("Expected 0F, got %s", got)
	}
	if got := Hex8(0xFA); got != "FA" {
		t.Errorf("Expected FA, got %s", got)
	}
	if got := Hex16(0x00FF); got != "00FF" {
		t.Errorf("Expected 00FF, got %s", got)
	}

	got := HexBytes([]byte("HELLOWORLD"))
	expected := "48 45 4C 4C 4F 57 4F 52 4C 44 "
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	if got := HexBytes(nil); got != "" {
		t.Errorf("Expected empty string for nil slice, got %q", got)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.WriteLine("Initializing board.")
	c.WriteField("Opcode", Hex8(0x03))
	c.WriteHex("STATUS : ", []byte{0x00})

	expected := "Initializing board.\n Opcode = 03\nSTATUS : 00 \n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}

	buf.Reset()
	c.SetNewline("\r\n")
	c.DebugWriter()("x")
	if buf.String() != "x\r\n" {
		t.Errorf("Expected CRLF terminated line, got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, bytes.ErrTooLarge }

func TestConsoleCountsWriteErrors(t *testing.T) {
	c := NewConsole(failingWriter{})
	c.WriteLine("a")
	c.Write("b")
	if c.WriteErrors != 2 {
		t.Errorf("Expected 2 write errors, got %d", c.WriteErrors)
	}

	// nil writer discards
	NewConsole(nil).WriteLine("dropped")
}
