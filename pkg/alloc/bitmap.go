package alloc

import (
	"math/bits"

	"github.com/weberc2/simfs/pkg/math"
)

const bitsPerByte = 8

// Bits are numbered least-significant first within each byte: bit `i` lives
// in byte `i/8` at position `i%8`.

func byteIsSet(byt byte, bit uint8) bool {
	return byt&(1<<bit) != 0
}

func byteSetHigh(byt byte, bit uint8) byte {
	return byt | (1 << bit)
}

func byteSetLow(byt byte, bit uint8) byte {
	return byt &^ (1 << bit)
}

// bytesFirstZero returns the index of the first clear bit among the first
// `limit` bits of `bytes`.
func bytesFirstZero(bytes []byte, limit uint64) (uint64, bool) {
	for i, byt := range bytes {
		if byt == 0xff {
			continue
		}
		bit := uint64(bits.TrailingZeros8(^byt))
		if index := uint64(i)*bitsPerByte + bit; index < limit {
			return index, true
		}
		return 0, false
	}
	return 0, false
}

// bytesCountSet counts the set bits among the first `limit` bits of `bytes`.
func bytesCountSet(bytes []byte, limit uint64) uint64 {
	var count uint64
	full := math.Min(limit/bitsPerByte, uint64(len(bytes)))
	for _, byt := range bytes[:full] {
		count += uint64(bits.OnesCount8(byt))
	}
	if rem := limit % bitsPerByte; rem > 0 && full < uint64(len(bytes)) {
		count += uint64(bits.OnesCount8(bytes[full] & (1<<rem - 1)))
	}
	return count
}
