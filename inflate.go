package pngn

import (
	"github.com/rs/zerolog"
)

// blockKind is the 2-bit DEFLATE block type.
type blockKind uint8

const (
	blockStored blockKind = iota
	blockFixed
	blockDynamic
	blockReserved
)

func (k blockKind) String() string {
	switch k {
	case blockStored:
		return "stored"
	case blockFixed:
		return "fixed"
	case blockDynamic:
		return "dynamic"
	}

	return "reserved"
}

const endOfBlock = 256

// Length and distance tables, RFC 1951 section 3.2.5.
var (
	lengthBases = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	extraLengthBits = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
	distanceBases = [30]uint16{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
	}
	extraDistanceBits = [30]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
)

// codeLengthOrder is the transmission order of the code length code lengths.
var codeLengthOrder = [19]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// blockReader decodes DEFLATE blocks one output byte at a time.
// Errors are raised with fail and recovered by the inflater.
type blockReader struct {
	bs       *bitStream
	win      *window
	logger   *zerolog.Logger
	final    bool      // the current block is the last one
	kind     blockKind // type of the current block
	inBlock  bool      // a header was read and its end has not been reached
	done     bool      // end of the final block was reached
	stored   int       // bytes left in a stored block
	copyLen  int       // bytes left in the current back-reference
	literal  *huffmanTable
	distance *huffmanTable
	blocks   int
}

func newBlockReader(bs *bitStream, logger *zerolog.Logger) *blockReader {
	return &blockReader{
		bs:     bs,
		win:    newWindow(bs.windowSize),
		logger: logger,
	}
}

// getNextByte returns the next decompressed byte. ok is false once the end
// of the final block has been reached.
func (br *blockReader) getNextByte() (b byte, ok bool) {
	for {
		if br.copyLen > 0 {
			br.copyLen--

			return br.win.copyByte(), true
		}

		if br.done {
			return 0, false
		}

		if !br.inBlock {
			br.readBlockHeader()

			continue
		}

		if br.kind == blockStored {
			if br.stored == 0 {
				br.endBlock()

				continue
			}

			br.stored--
			b = byte(br.bs.nextBits(8))
			br.win.put(b)

			return b, true
		}

		sym := br.literal.decode(br.bs)
		switch {
		case sym < endOfBlock:
			b = byte(sym)
			br.win.put(b)

			return b, true
		case sym == endOfBlock:
			br.endBlock()
		case sym <= 285:
			br.startCopy(sym)
		default:
			fail(invalidf("invalid literal/length symbol %d", sym))
		}
	}
}

// startCopy reads the length extra bits and the distance for length symbol
// sym and arms the back-reference copy.
func (br *blockReader) startCopy(sym int) {
	i := sym - 257
	length := int(lengthBases[i]) + int(br.bs.nextBits(uint(extraLengthBits[i])))

	d := br.distance.decode(br.bs)
	if d >= len(distanceBases) {
		fail(invalidf("invalid distance symbol %d", d))
	}

	distance := int(distanceBases[d]) + int(br.bs.nextBits(uint(extraDistanceBits[d])))
	if err := br.win.startCopy(distance); err != nil {
		fail(err)
	}

	br.copyLen = length
}

func (br *blockReader) endBlock() {
	br.inBlock = false
	if br.final {
		br.done = true
	}
}

// readBlockHeader reads the final flag and block type, then the block's own
// preamble: LEN/NLEN for stored blocks or the code tables for dynamic ones.
func (br *blockReader) readBlockHeader() {
	br.final = br.bs.nextBit() == 1
	br.kind = blockKind(br.bs.nextBits(2))
	br.blocks++

	switch br.kind {
	case blockStored:
		br.bs.alignToByte()
		n := br.bs.nextBits(16)
		nn := br.bs.nextBits(16)
		if n^nn != 0xffff {
			fail(invalidf("stored block length %#04x does not match complement %#04x", n, nn))
		}
		br.stored = int(n)
	case blockFixed:
		br.literal, br.distance = fixedTables()
	case blockDynamic:
		br.readDynamicTables()
	default:
		fail(invalidf("reserved block type"))
	}

	br.inBlock = true

	br.logger.Debug().
		Int("block", br.blocks).
		Stringer("type", br.kind).
		Bool("final", br.final).
		Msg("deflate block")
}

// readDynamicTables reads the code length code and the literal/length and
// distance code lengths of a dynamic block (RFC 1951 section 3.2.7).
func (br *blockReader) readDynamicTables() {
	nlit := int(br.bs.nextBits(5)) + 257
	ndist := int(br.bs.nextBits(5)) + 1
	nclen := int(br.bs.nextBits(4)) + 4

	if nlit > 286 || ndist > 30 {
		fail(invalidf("dynamic block declares %d literal and %d distance codes", nlit, ndist))
	}

	var clens [len(codeLengthOrder)]uint8
	for i := 0; i < nclen; i++ {
		clens[codeLengthOrder[i]] = uint8(br.bs.nextBits(3))
	}

	clTable, err := newHuffmanTable(clens[:])
	if err != nil {
		fail(err)
	}

	lengths := make([]uint8, nlit+ndist)
	for i := 0; i < len(lengths); {
		sym := clTable.decode(br.bs)

		var value uint8
		var repeat int
		switch sym {
		case 16:
			if i == 0 {
				fail(invalidf("repeat code with no previous length"))
			}
			value = lengths[i-1]
			repeat = 3 + int(br.bs.nextBits(2))
		case 17:
			repeat = 3 + int(br.bs.nextBits(3))
		case 18:
			repeat = 11 + int(br.bs.nextBits(7))
		default:
			lengths[i] = uint8(sym)
			i++

			continue
		}

		if i+repeat > len(lengths) {
			fail(invalidf("code length repeat overflows %d codes", len(lengths)))
		}

		for ; repeat > 0; repeat-- {
			lengths[i] = value
			i++
		}
	}

	if lengths[endOfBlock] == 0 {
		fail(invalidf("dynamic block has no end-of-block code"))
	}

	if br.literal, err = newHuffmanTable(lengths[:nlit]); err != nil {
		fail(err)
	}

	if br.distance, err = newHuffmanTable(lengths[nlit:]); err != nil {
		fail(err)
	}
}

// assertFinished checks that no decompressed data is left: an interrupted
// back-reference or stored block fails, and any remaining block must consist
// of nothing but its end-of-block marker.
func (br *blockReader) assertFinished() {
	if br.copyLen > 0 {
		fail(invalidf("too much pixel data"))
	}

	for !br.done {
		if !br.inBlock {
			br.readBlockHeader()

			continue
		}

		if br.kind == blockStored {
			if br.stored > 0 {
				fail(invalidf("too much pixel data"))
			}
		} else if sym := br.literal.decode(br.bs); sym != endOfBlock {
			fail(invalidf("too much pixel data"))
		}

		br.endBlock()
	}
}

func (br *blockReader) release() {
	br.win.release()
}
