package bitcoincore

// DecodeVarIntForIndex decodes the MSB base-128 varint Bitcoin Core uses in its block index:
// each byte carries 7 bits, the high bit marks continuation and every continuation adds one
// so that each value has exactly one encoding. It returns the value and the number of bytes read,
// 0 bytes read means data ended before the varint did.
func DecodeVarIntForIndex(data []byte) (int, int) {
	n := 0

	for i, b := range data {
		n = (n << 7) | int(b&0x7f)

		if b&0x80 == 0 {
			return n, i + 1
		}

		n++
	}

	return 0, 0
}
