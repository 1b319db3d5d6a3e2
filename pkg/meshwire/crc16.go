package meshwire

// CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no input/output reflection,
// no final XOR. No library in the retrieval pack offers this exact variant
// (most CRC packages default to CRC-16/CCITT or CRC-16/XMODEM, which differ
// in init or reflection), so it is implemented directly against a
// precomputed table, the same approach the teacher uses for its own
// byte-level framing code in source/protocol/raknet.go.
var crc16Table [256]uint16

func init() {
	const poly = 0x1021
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc16Table[i] = crc
	}
}

// CRC16CCITTFalse computes the CRC-16/CCITT-FALSE checksum of data.
func CRC16CCITTFalse(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}
