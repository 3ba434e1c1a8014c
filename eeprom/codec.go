// Package eeprom drives a 25xx-family SPI serial EEPROM.
//
// Command framing follows the chip's instruction set: every instruction is
// sent in its own chip-select window, opcode first, then (for READ and
// WRITE) a 16-bit address high byte first, then data. Writes must be
// preceded by a WREN instruction in a separate, closed window, and the chip
// needs time to commit a write after chip select is released.
package eeprom

// Opcode is a one-byte instruction code from the chip's instruction set
type Opcode byte

// Instruction set
const (
	OpWRSR  Opcode = 0x01 // Write STATUS register
	OpWRITE Opcode = 0x02 // Write data to memory array beginning at selected address
	OpREAD  Opcode = 0x03 // Read data from memory array beginning at selected address
	OpWRDI  Opcode = 0x04 // Reset the write enable latch (disable write operations)
	OpRDSR  Opcode = 0x05 // Read STATUS register
	OpWREN  Opcode = 0x06 // Set the write enable latch (enable write operations)
)

// Dummy is clocked out to receive a byte.
const Dummy byte = 0x00

// String returns the datasheet mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpWRSR:
		return "WRSR"
	case OpWRITE:
		return "WRITE"
	case OpREAD:
		return "READ"
	case OpWRDI:
		return "WRDI"
	case OpRDSR:
		return "RDSR"
	case OpWREN:
		return "WREN"
	default:
		return "UNKNOWN"
	}
}

// Status register bits
const (
	StatusWIP  = 0x01 // Write in progress
	StatusWEL  = 0x02 // Write enable latch
	StatusBP0  = 0x04 // Block protect 0
	StatusBP1  = 0x08 // Block protect 1
	StatusWPEN = 0x80 // Write protect enable
)

// Status is a decoded STATUS register value.
type Status struct {
	Raw byte

	WriteInProgress    bool
	WriteEnableLatch   bool
	BlockProtect       uint8 // BP1:BP0
	WriteProtectEnable bool
}

// DecodeStatus decodes the byte returned by an RDSR exchange.
func DecodeStatus(b byte) Status {
	return Status{
		Raw:                b,
		WriteInProgress:    b&StatusWIP != 0,
		WriteEnableLatch:   b&StatusWEL != 0,
		BlockProtect:       (b & (StatusBP0 | StatusBP1)) >> 2,
		WriteProtectEnable: b&StatusWPEN != 0,
	}
}

// SplitAddress returns the address bytes in transmission order.
func SplitAddress(addr uint16) (hi, lo byte) {
	return byte(addr >> 8), byte(addr & 0x00FF)
}

// EncodeRead returns the READ frame header. It must be followed, in the
// same chip-select window, by one dummy transfer per byte to read; the chip
// increments the address internally.
func EncodeRead(addr uint16) []byte {
	hi, lo := SplitAddress(addr)
	return []byte{byte(OpREAD), hi, lo}
}

// EncodeWrite returns the WRITE frame header. The data bytes follow in the
// same window. The chip ignores WRITE unless a WREN window preceded it.
func EncodeWrite(addr uint16) []byte {
	hi, lo := SplitAddress(addr)
	return []byte{byte(OpWRITE), hi, lo}
}

// EncodeWriteEnable returns the WREN frame.
func EncodeWriteEnable() []byte {
	return []byte{byte(OpWREN)}
}

// EncodeWriteDisable returns the WRDI frame.
func EncodeWriteDisable() []byte {
	return []byte{byte(OpWRDI)}
}

// EncodeStatusRead returns the RDSR opcode. The reply to the following
// dummy transfer, in the same window, is the status byte.
func EncodeStatusRead() []byte {
	return []byte{byte(OpRDSR)}
}

// EncodeWriteStatus returns the WRSR frame carrying the new status value.
func EncodeWriteStatus(value byte) []byte {
	return []byte{byte(OpWRSR), value}
}
