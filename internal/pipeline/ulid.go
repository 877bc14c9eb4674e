package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// ULIDs are 26-character Crockford Base32 strings: a 48-bit millisecond
// timestamp followed by 80 random bits. Run ids sort by start time.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

type idSource struct {
	mu      sync.Mutex
	lastTS  uint64
	lastSeq uint16
}

var runIDs idSource

func newRunID(at time.Time) string {
	return runIDs.next(at)
}

func (s *idSource) next(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := uint64(at.UnixMilli())
	if ts == s.lastTS {
		s.lastSeq++
	} else {
		s.lastTS = ts
		s.lastSeq = 0
	}

	var b [16]byte
	for i := range 6 {
		b[i] = byte(ts >> (40 - 8*i))
	}
	rand.Read(b[6:])
	// The sequence keeps ids from one millisecond distinct.
	binary.BigEndian.PutUint16(b[6:8], s.lastSeq)
	return encodeBase32(b)
}

// encodeBase32 writes the 128 bits as 26 five-bit groups, most significant
// first. The leading group carries only the top 3 bits.
func encodeBase32(b [16]byte) string {
	var out [26]byte
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	for i := 25; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}
