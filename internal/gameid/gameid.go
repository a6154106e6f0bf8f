// Package gameid generates sortable identifiers for tournaments, tables and
// hands: a UUIDv7 rendered as 26 lowercase Crockford base32 characters.
package gameid

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Crockford's base32, lowercase.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator mints ids. The zero value reads randomness from crypto/rand.
type Generator struct {
	mu     sync.Mutex
	random io.Reader
	prefix string
}

// NewGenerator returns a generator that prefixes every id with prefix and
// a dash ("tbl-...") when prefix is set. A non-nil random reader makes the
// random bits reproducible, as used by replays; the timestamp still varies.
func NewGenerator(prefix string, random io.Reader) *Generator {
	return &Generator{random: random, prefix: prefix}
}

// Generate returns a fresh id without a prefix.
func Generate() string {
	return new(Generator).Generate()
}

// Generate returns the next id.
func (g *Generator) Generate() string {
	var (
		u   uuid.UUID
		err error
	)
	if g.random != nil {
		g.mu.Lock()
		u, err = uuid.NewV7FromReader(g.random)
		g.mu.Unlock()
	} else {
		u, err = uuid.NewV7()
	}
	if err != nil {
		panic("gameid: " + err.Error())
	}
	id := encodeBase32(u)
	if g.prefix != "" {
		return g.prefix + "-" + id
	}
	return id
}

// encodeBase32 packs the 128 bits, most significant first, into 26
// five-bit groups. The final group carries two padding zero bits.
func encodeBase32(data uuid.UUID) string {
	out := make([]byte, 26)
	for i := range out {
		offset := i * 5
		byteIndex, bitIndex := offset/8, offset%8
		var value uint8
		if bitIndex <= 3 {
			value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
		} else {
			value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
			if byteIndex+1 < len(data) {
				value |= data[byteIndex+1] >> (11 - bitIndex)
			}
		}
		out[i] = alphabet[value]
	}
	return string(out)
}

// Validate checks an id, with or without a prefix.
func Validate(id string) error {
	if i := strings.LastIndexByte(id, '-'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) != 26 {
		return fmt.Errorf("gameid: must be 26 characters, got %d", len(id))
	}
	for i, c := range id {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("gameid: invalid character %c at position %d", c, i)
		}
	}
	return nil
}
