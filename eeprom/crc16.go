package eeprom

// Checksum is the CRC-16/MCRF4XX (reflected CCITT polynomial, initial value
// 0xFFFF, no final xor) of data. It is used to compare a written buffer
// with what was read back without printing both in full.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b = b ^ uint8(crc&0xFF)
		b = b ^ (b << 4)
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
