package randutil

import (
	"encoding/binary"
	"io"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewReader returns a deterministic byte stream derived from seed. It stands
// in for the hardware entropy source in tests and replay tooling and must
// never back a live shuffle.
func NewReader(seed int64) io.Reader {
	u := uint64(seed)
	return &pcgReader{src: rand.NewPCG(mix(u), mix(u+goldenRatio64))}
}

type pcgReader struct {
	src  *rand.PCG
	buf  [8]byte
	left int
}

func (r *pcgReader) Read(p []byte) (int, error) {
	for i := range p {
		if r.left == 0 {
			binary.LittleEndian.PutUint64(r.buf[:], r.src.Uint64())
			r.left = len(r.buf)
		}
		p[i] = r.buf[len(r.buf)-r.left]
		r.left--
	}
	return len(p), nil
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
