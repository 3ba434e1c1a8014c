package core

import "io"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// NopDebugWriter discards every message.
func NopDebugWriter(string) {}

// Console is the diagnostic text sink. It is byte oriented and not part of
// any protocol's correctness, so write errors are counted and otherwise
// ignored.
type Console struct {
	w       io.Writer
	newline string

	// WriteErrors counts writes the underlying writer rejected
	WriteErrors uint32
}

// NewConsole wraps w. A nil writer yields a console that discards output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w, newline: "\n"}
}

// SetNewline changes the line terminator ("\r\n" for raw UARTs).
func (c *Console) SetNewline(nl string) {
	c.newline = nl
}

// Write writes s without a terminator.
func (c *Console) Write(s string) {
	if _, err := io.WriteString(c.w, s); err != nil {
		c.WriteErrors++
	}
}

// WriteLine writes s followed by the line terminator.
func (c *Console) WriteLine(s string) {
	c.Write(s + c.newline)
}

// WriteField writes an indented "name = value" line.
func (c *Console) WriteField(name, value string) {
	c.WriteLine(" " + name + " = " + value)
}

// WriteHex writes data as hex pairs, prefixed by label, on one line.
func (c *Console) WriteHex(label string, data []byte) {
	c.WriteLine(label + HexBytes(data))
}

// DebugWriter returns a DebugWriter that writes whole lines to the console.
func (c *Console) DebugWriter() DebugWriter {
	return c.WriteLine
}
