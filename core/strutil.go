package core

const hexDigits = "0123456789ABCDEF"

// Itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	// Count digits
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	// Add space for negative sign
	if negative {
		digits++
	}

	// Build string from right to left
	buf := make([]byte, digits)
	pos := digits - 1

	for n > 0 {
		buf[pos] = byte('0' + n%10)
		n /= 10
		pos--
	}

	if negative {
		buf[0] = '-'
	}

	return string(buf)
}

// Hex8 formats a byte as two uppercase hex digits.
func Hex8(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}

// Hex16 formats a 16-bit value as four uppercase hex digits.
func Hex16(v uint16) string {
	return Hex8(byte(v>>8)) + Hex8(byte(v))
}

// HexBytes formats data as space separated hex pairs, each followed by a
// space: "48 45 4C ".
func HexBytes(data []byte) string {
	buf := make([]byte, 0, len(data)*3)
	for _, b := range data {
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0x0F], ' ')
	}
	return string(buf)
}
