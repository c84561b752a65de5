package pngn

// readState records which chunk kinds have been seen. Flags only ever turn
// on, in chunk arrival order.
type readState struct {
	seenIHDR bool
	seenPLTE bool
	seenIDAT bool
	seenIEND bool
	seentRNS bool

	// pixelDataComplete turns on with the first non-IDAT chunk that follows
	// an IDAT chunk: the compressed stream must be finished by then.
	pixelDataComplete bool
}

// observe records the arrival of a chunk that passed validation.
func (s *readState) observe(k chunkKind) {
	if s.seenIDAT && k != kindIDAT {
		s.pixelDataComplete = true
	}

	switch k {
	case kindIHDR:
		s.seenIHDR = true
	case kindPLTE:
		s.seenPLTE = true
	case kindIDAT:
		s.seenIDAT = true
	case kindtRNS:
		s.seentRNS = true
	case kindIEND:
		s.seenIEND = true
	}
}
