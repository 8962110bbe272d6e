package util

import ( //Dark magic to make simple things fast...
	"unsafe"
)

//IsZeros confirms the provided byte slice contains only zeros by returning true
func IsZeros(block []byte) bool {
	longCount := len(block) / 8
	var remainingStart int

	if longCount > 0 {
		longs := unsafe.Slice((*uint64)(unsafe.Pointer(&block[0])), longCount)
		for _, long := range longs {
			if long != 0 {
				return false
			}
		}
		remainingStart = longCount * 8
	}

	for _, char := range block[remainingStart:] {
		if char != 0 {
			return false
		}
	}

	return true
}

//ZeroFill ensures the provided byte slice contains only zeros
func ZeroFill(block []byte) {
	if len(block) < 1 {
		return
	}

	block[0] = 0
	for i := 1; i < len(block); i <<= 1 {
		copy(block[i:], block[:i])
	}
}

//SectorAlign rounds count up to the next multiple of sectorSize
func SectorAlign(count, sectorSize uint64) uint64 {
	if sectorSize == 0 {
		return count
	}
	return (count + sectorSize - 1) / sectorSize * sectorSize
}
