package shuffle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/coder/quartz"
)

const keySize = 32

// stream turns three independent inputs into uniform 64-bit words. Every
// 32-byte block is HMAC-SHA256 keyed with fresh hardware bytes over the
// clock reading, the shuffler counter, the block index and the previous
// block, so no single weak source can steer the output.
type stream struct {
	hw      func([]byte) error
	clock   quartz.Clock
	counter uint64

	block uint64
	prev  [sha256.Size]byte
	buf   []byte

	rejections int
}

func (st *stream) refill() error {
	key := make([]byte, keySize)
	if err := st.hw(key); err != nil {
		return err
	}
	var msg [32]byte
	binary.BigEndian.PutUint64(msg[0:], uint64(st.clock.Now().UnixNano()))
	binary.BigEndian.PutUint64(msg[8:], st.counter)
	binary.BigEndian.PutUint64(msg[16:], st.block)
	mac := hmac.New(sha256.New, key)
	mac.Write(msg[:24])
	mac.Write(st.prev[:])
	copy(st.prev[:], mac.Sum(nil))
	st.buf = st.prev[:]
	st.block++
	return nil
}

func (st *stream) uint64() (uint64, error) {
	if len(st.buf) < 8 {
		if err := st.refill(); err != nil {
			return 0, err
		}
	}
	v := binary.BigEndian.Uint64(st.buf)
	st.buf = st.buf[8:]
	return v, nil
}

// intn returns a uniform value in [0, n). Draws at or above the largest
// multiple of n that fits in 64 bits are discarded so the modulo carries no
// bias.
func (st *stream) intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("shuffle: invalid bound %d", n)
	}
	bound := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%bound
	for {
		v, err := st.uint64()
		if err != nil {
			return 0, err
		}
		if v < limit {
			return int(v % bound), nil
		}
		st.rejections++
	}
}
