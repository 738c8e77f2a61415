package ecc

import (
	"math/bits"
)

// ChunkSize is the number of page bytes covered by one 3 byte code.
const ChunkSize = 128

const codeSize = 3

var (
	parityTable       [256]byte
	columnParityTable [256]byte
)

func init() {
	masks := []byte{0x55, 0x33, 0x0F, 0x00, 0xAA, 0xCC, 0xF0}
	for b := 0; b < 256; b++ {
		parityTable[b] = byte(bits.OnesCount8(uint8(b)) & 1)
	}
	for b := 0; b < 256; b++ {
		var mask byte
		for i, m := range masks {
			mask |= parityTable[byte(b)&m] << i
		}
		columnParityTable[b] = mask
	}
}

// Hamming is the memory card code: every 128 byte chunk of a page is
// protected by a column parity byte and two line parity bytes, which
// together locate and repair any single flipped bit.
type Hamming struct{}

var _ Codec = Hamming{}

func (Hamming) SpareSize(pageSize int) int {
	return (pageSize + ChunkSize - 1) / ChunkSize * 4
}

func (h Hamming) Encode(page []byte) []byte {
	spare := make([]byte, h.SpareSize(len(page)))
	for i := 0; i*ChunkSize < len(page); i++ {
		code := Calculate(chunk(page, i))
		copy(spare[i*codeSize:], code[:])
	}
	return spare
}

func (Hamming) Check(page, spare []byte) Result {
	result := OK
	for i := 0; i*ChunkSize < len(page); i++ {
		if (i+1)*codeSize > len(spare) {
			return Failed
		}
		switch checkChunk(chunk(page, i), spare[i*codeSize:(i+1)*codeSize]) {
		case Failed:
			return Failed
		case Corrected:
			result = Corrected
		}
	}
	return result
}

func chunk(page []byte, i int) []byte {
	end := (i + 1) * ChunkSize
	if end > len(page) {
		end = len(page)
	}
	return page[i*ChunkSize : end]
}

// Calculate returns the code of a chunk of at most 128 bytes.
func Calculate(data []byte) [3]byte {
	columnParity := byte(0x77)
	lineParity0 := byte(0x7F)
	lineParity1 := byte(0x7F)
	for i, b := range data {
		columnParity ^= columnParityTable[b]
		if parityTable[b] != 0 {
			lineParity0 ^= ^byte(i)
			lineParity1 ^= byte(i)
		}
	}
	return [3]byte{columnParity, lineParity0 & 0x7F, lineParity1}
}

func checkChunk(data, code []byte) Result {
	computed := Calculate(data)
	if computed[0] == code[0] && computed[1] == code[1] && computed[2] == code[2] {
		return OK
	}

	cpDiff := (computed[0] ^ code[0]) & 0x77
	lp0Diff := (computed[1] ^ code[1]) & 0x7F
	lp1Diff := (computed[2] ^ code[2]) & 0x7F
	lpComp := lp0Diff ^ lp1Diff
	cpComp := (cpDiff >> 4) ^ (cpDiff & 0x07)

	// single bit error in the data: line parities are complementary and
	// name the byte, the high column bits name the bit
	if lpComp == 0x7F && cpComp == 0x07 {
		if int(lp1Diff) >= len(data) {
			return Failed
		}
		data[lp1Diff] ^= 1 << (cpDiff >> 4)
		return Corrected
	}

	// single bit error in the code itself
	if (cpDiff == 0 && lp0Diff == 0 && lp1Diff == 0) ||
		bits.OnesCount8(lpComp)+bits.OnesCount8(cpComp) == 1 {
		copy(code, computed[:])
		return Corrected
	}

	return Failed
}
