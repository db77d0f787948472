// Package identifier generates the ULID-like identifiers used for flows,
// steps, transitions, and translation keys.
package identifier

import (
	"crypto/rand"
	"time"
)

// Alphabet is Crockford base32, the character set used by the workflow
// configuration API for every identifier it stores.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	versionTag = "01"
	timeChars  = 8
	randChars  = 16

	// Length is the total identifier length: version tag + timestamp + randomness.
	Length = len(versionTag) + timeChars + randChars
)

// New returns a fresh 26-character identifier: the fixed "01" version tag,
// 8 base32 characters of the current unix-milli timestamp (low-order portion,
// most significant first), and 16 random base32 characters.
//
// Uniqueness is probabilistic only. The timestamp portion repeats for every
// identifier generated within the same millisecond, so collision resistance
// rests entirely on the random suffix. That is acceptable for migration-sized
// batches but is not a cryptographic guarantee.
func New() string {
	buf := make([]byte, Length)
	copy(buf, versionTag)

	// Encode the timestamp into 10 base32 digits, keep the low 8. The two
	// high digits are constant until the year 10889 anyway.
	t := uint64(time.Now().UnixMilli())

	var ts [10]byte
	for i := len(ts) - 1; i >= 0; i-- {
		ts[i] = Alphabet[t%32]
		t /= 32
	}

	copy(buf[len(versionTag):], ts[len(ts)-timeChars:])

	var entropy [randChars]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}

	for i, b := range entropy {
		buf[len(versionTag)+timeChars+i] = Alphabet[int(b)%32]
	}

	return string(buf)
}
