package pngn

// adlerMod is the largest prime smaller than 65536.
const adlerMod = 65521

// adler is a running Adler-32 checksum: the low lane is the sum of all
// bytes plus one, the high lane the sum of the low lane after every byte,
// both modulo 65521.
type adler uint32

func newAdler() adler {
	return 1
}

func (a *adler) update(b byte) {
	low := uint32(*a) & 0xffff
	high := uint32(*a) >> 16
	low = (low + uint32(b)) % adlerMod
	high = (high + low) % adlerMod
	*a = adler(high<<16 | low)
}

func (a adler) sum() uint32 {
	return uint32(a)
}
