// Package integrity computes stable digests over ordered field sequences.
//
// Fields are length-prefixed before hashing so ("ab","c") and ("a","bc") never
// collide. Callers are responsible for feeding fields in a deterministic order.
package integrity

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Digest accumulates named fields into a BLAKE2b-256 hash.
type Digest struct {
	h hash.Hash
}

// New returns an empty digest.
func New() *Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	return &Digest{h: h}
}

// Field adds a name/value pair.
func (d *Digest) Field(name, value string) *Digest {
	d.write(name)
	d.write(value)
	return d
}

// Section marks a boundary between records so field order inside one record
// cannot bleed into the next.
func (d *Digest) Section(kind string) *Digest {
	d.write("\x00" + kind)
	return d
}

// Sum returns the hex-encoded digest.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

func (d *Digest) write(s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	d.h.Write(n[:])
	d.h.Write([]byte(s))
}
