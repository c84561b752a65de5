package pngn

import "sync"

// maxWindowSize is the largest window a zlib header can announce.
const maxWindowSize = 32768

// windowPool recycles window buffers between decodes.
var windowPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, maxWindowSize)

		return &b
	},
}

// window is the circular history buffer that back-references copy from.
// Both cursors wrap at the window length independently.
type window struct {
	buf    *[]byte
	hist   []byte
	write  int
	read   int
	filled int // bytes written so far, capped at len(hist)
}

func newWindow(size int) *window {
	buf := windowPool.Get().(*[]byte)

	return &window{
		buf:  buf,
		hist: (*buf)[:size],
	}
}

// release returns the buffer to the pool. The window must not be used after.
func (w *window) release() {
	if w.buf != nil {
		windowPool.Put(w.buf)
		w.buf = nil
		w.hist = nil
	}
}

// put appends one output byte to the history.
func (w *window) put(b byte) {
	w.hist[w.write] = b
	w.write++
	if w.write == len(w.hist) {
		w.write = 0
	}

	if w.filled < len(w.hist) {
		w.filled++
	}
}

// startCopy positions the read cursor distance bytes behind the write cursor.
// Distances past the window or past the start of the output are rejected.
func (w *window) startCopy(distance int) error {
	if distance < 1 || distance > len(w.hist) {
		return invalidf("back-reference distance %d outside window of %d bytes", distance, len(w.hist))
	}

	if distance > w.filled {
		return invalidf("back-reference distance %d before start of data", distance)
	}

	w.read = w.write - distance
	if w.read < 0 {
		w.read += len(w.hist)
	}

	return nil
}

// copyByte produces the next byte of a back-reference and appends it.
func (w *window) copyByte() byte {
	b := w.hist[w.read]
	w.read++
	if w.read == len(w.hist) {
		w.read = 0
	}

	w.put(b)

	return b
}
