package security

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
)

// Local is the ciphersuite-agnostic state every security block carries,
// stashed in bundle.Block.SecurityLocal. Correlator ties together the
// blocks that jointly cover one logical security operation (e.g. a PC3
// block and the payload block it encrypted).
type Local struct {
	Correlator          uint64
	SecuritySource      eid.EID
	SecurityDestination eid.EID
	Parameters          ItemList
	Result              ItemList
}

func localOf(blk *bundle.Block) *Local {
	if l, ok := blk.SecurityLocal.(*Local); ok {
		return l
	}
	l := &Local{}
	blk.SecurityLocal = l
	return l
}

// mutableFlagMask selects the flag bits a canonical digest includes: every
// bit except the ones a relaying node is allowed to flip in flight
// (last-block, forwarded-without-processing) without invalidating the
// bundle's integrity.
const mutableFlagMask = ^uint16(bundle.FlagLastBlock | bundle.FlagForwardedWithoutProcessing)

// canonicalBytes concatenates the fields the ciphersuites authenticate: the
// primary block's endpoints and creation timestamp, then every other
// block's type, flags and data in bundle order, skipping the excluded
// block's own security-result (it cannot authenticate itself) and the flag
// bits a relaying node is allowed to flip in flight.
func canonicalBytes(b *bundle.Bundle, excluding *bundle.Block) []byte {
	var buf []byte
	buf = append(buf, []byte(b.Primary.Destination.String())...)
	buf = append(buf, []byte(b.Primary.Source.String())...)
	var ts [16]byte
	putUint64(ts[0:8], b.Primary.Creation.Seconds)
	putUint64(ts[8:16], b.Primary.Creation.Seq)
	buf = append(buf, ts[:]...)

	for _, blk := range b.AllBlocks() {
		if blk == excluding {
			continue
		}
		buf = append(buf, byte(blk.Type))
		var fb [2]byte
		putUint16(fb[:], uint16(blk.Flags)&mutableFlagMask)
		buf = append(buf, fb[:]...)
		buf = append(buf, blk.Data...)
	}
	return buf
}

// canonicalDigest is the SHA-256 of canonicalBytes, the form PI2 signs.
func canonicalDigest(b *bundle.Bundle, excluding *bundle.Block) []byte {
	sum := sha256.Sum256(canonicalBytes(b, excluding))
	return sum[:]
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func hmacSHA1Sum(key, data []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
