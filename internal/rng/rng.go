// Package rng is the deterministic random source behind the particle layout.
//
// Every window seeds it with the seed stored in the shared medium, so peers
// agree on the initial particle field without exchanging it.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// Source is a mulberry32 generator. It is not safe for concurrent use.
type Source struct {
	state uint32
}

func New(seed uint32) *Source {
	return &Source{state: seed}
}

// Uint32 advances the generator and returns the next raw value.
func (s *Source) Uint32() uint32 {
	s.state += 0x6d2b79f5
	t := s.state
	r := (t ^ t>>15) * (t | 1)
	r ^= r + (r^r>>7)*(r|61)
	return r ^ r>>14
}

// Float64 returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint32()) / 4294967296.0
}

// Range returns the next value in [lo, hi).
func (s *Source) Range(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// Intn returns the next value in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	return int(math.Floor(s.Float64() * float64(n)))
}

// Angle returns the next value in [0, 2π).
func (s *Source) Angle() float64 {
	return s.Float64() * 2 * math.Pi
}

// MaxSeed bounds seeds produced by NewSeed.
const MaxSeed = 1_000_000_000

// NewSeed draws a fresh non-zero seed in [1, MaxSeed) from crypto/rand.
func NewSeed() (uint32, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return uint32(binary.LittleEndian.Uint64(b[:])%(MaxSeed-1)) + 1, nil
}
