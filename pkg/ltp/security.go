package ltp

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/cuemby/dtnd/pkg/sdnv"
)

// TrailerKeySteward resolves the preshared key behind a cipher_key_id, the
// common case described in spec §4.6.5; the asymmetric key-info variant
// (keying off a sender's public cert carried on a session's first segment)
// is not implemented here.
type TrailerKeySteward interface {
	Key(keyID uint32) ([]byte, error)
}

const macSize = sha256.Size

// AppendTrailer authenticates segment with an HMAC-SHA256 trailer keyed
// by keyID, per spec §4.6.5 ("each outbound segment appends an
// authentication trailer keyed ... by cipher_key_id").
func AppendTrailer(segment []byte, keyID uint32, key []byte) []byte {
	out := append([]byte(nil), segment...)
	out = sdnv.Encode(out, uint64(keyID))
	mac := hmac.New(sha256.New, key)
	mac.Write(segment)
	return mac.Sum(out)
}

// VerifyTrailer splits segment into its body and trailer, looks up the
// key by the trailer's cipher_key_id via steward, and authenticates.
// Per spec §4.6.5, a failed check means the segment is dropped silently
// by the caller, not reported as an error to the peer.
func VerifyTrailer(segment []byte, steward TrailerKeySteward) (body []byte, ok bool, err error) {
	if len(segment) < macSize {
		return nil, false, fmt.Errorf("ltp: segment too short for trailer")
	}
	mac := segment[len(segment)-macSize:]
	rest := segment[:len(segment)-macSize]

	keyID, n, err := sdnvFromEnd(rest)
	if err != nil {
		return nil, false, fmt.Errorf("ltp: trailer key id: %w", err)
	}
	body = rest[:len(rest)-n]

	key, err := steward.Key(uint32(keyID))
	if err != nil {
		return nil, false, nil // unknown key id: drop silently, not an error
	}

	h := hmac.New(sha256.New, key)
	h.Write(body)
	want := h.Sum(nil)
	if !hmac.Equal(want, mac) {
		return nil, false, nil
	}
	return body, true, nil
}

// sdnvFromEnd decodes the SDNV immediately preceding the trailer's MAC
// bytes. SDNVs have no fixed width, so the encoder's length is rediscovered
// by scanning backward for the first byte with its continuation bit clear.
func sdnvFromEnd(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("empty buffer")
	}
	start := len(buf) - 1
	for start > 0 && buf[start-1]&0x80 != 0 {
		start--
	}
	v, n, err := sdnv.Decode(buf[start:])
	if err != nil {
		return 0, 0, err
	}
	return v, n, nil
}
