package pngn

import "sync"

// maxCodeLength is the longest prefix code DEFLATE can describe.
const maxCodeLength = 15

// bitSource supplies single bits for Huffman decoding.
type bitSource interface {
	nextBit() uint32
}

// huffmanTable is a canonical prefix code. Symbols are stored sorted by
// (code length, symbol value); for each code length the table keeps the
// numerically smallest and largest code of that length and the index of the
// first symbol that has it. All codes of one length are consecutive integers.
type huffmanTable struct {
	symbols []uint16
	minCode [maxCodeLength + 1]int32
	maxCode [maxCodeLength + 1]int32 // -1 when no code has this length
	base    [maxCodeLength + 1]int32
	maxLen  int
}

// newHuffmanTable builds the canonical code described by lengths, one entry
// per symbol; a zero length means the symbol is unused. Over-subscribed
// length sets are rejected. Incomplete sets are accepted, since a single
// distance code is legal DEFLATE.
func newHuffmanTable(lengths []uint8) (*huffmanTable, error) {
	var count [maxCodeLength + 1]int32
	for sym, n := range lengths {
		if n > maxCodeLength {
			return nil, invalidf("code length %d for symbol %d exceeds %d", n, sym, maxCodeLength)
		}
		count[n]++
	}
	count[0] = 0

	left := int32(1)
	for n := 1; n <= maxCodeLength; n++ {
		left <<= 1
		left -= count[n]
		if left < 0 {
			return nil, invalidf("over-subscribed Huffman code lengths")
		}
	}

	h := &huffmanTable{
		symbols: make([]uint16, 0, len(lengths)),
	}

	for n := uint8(1); n <= maxCodeLength; n++ {
		for sym, l := range lengths {
			if l == n {
				h.symbols = append(h.symbols, uint16(sym))
			}
		}
	}

	code, index := int32(0), int32(0)
	for n := 1; n <= maxCodeLength; n++ {
		h.maxCode[n] = -1
		if count[n] > 0 {
			h.minCode[n] = code
			h.maxCode[n] = code + count[n] - 1
			h.base[n] = index
			h.maxLen = n
		}
		code = (code + count[n]) << 1
		index += count[n]
	}

	return h, nil
}

// decode reads one symbol from br. Code bits arrive most significant first.
func (h *huffmanTable) decode(br bitSource) int {
	code := int32(0)
	for n := 1; n <= h.maxLen; n++ {
		code = code<<1 | int32(br.nextBit())
		if h.maxCode[n] >= 0 && code >= h.minCode[n] && code <= h.maxCode[n] {
			return int(h.symbols[h.base[n]+code-h.minCode[n]])
		}
	}

	fail(invalidf("invalid Huffman code"))

	return 0
}

// Fixed tables from RFC 1951 section 3.2.6, built on first use.
var (
	fixedOnce     sync.Once
	fixedLiteral  *huffmanTable
	fixedDistance *huffmanTable
)

func fixedTables() (literal, distance *huffmanTable) {
	fixedOnce.Do(func() {
		var lengths [288]uint8
		for i := range lengths {
			switch {
			case i < 144:
				lengths[i] = 8
			case i < 256:
				lengths[i] = 9
			case i < 280:
				lengths[i] = 7
			default:
				lengths[i] = 8
			}
		}
		fixedLiteral, _ = newHuffmanTable(lengths[:])

		var dist [32]uint8
		for i := range dist {
			dist[i] = 5
		}
		fixedDistance, _ = newHuffmanTable(dist[:])
	})

	return fixedLiteral, fixedDistance
}
