package ltp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type mapSteward map[uint32][]byte

func (m mapSteward) Key(keyID uint32) ([]byte, error) {
	k, ok := m[keyID]
	if !ok {
		return nil, fmt.Errorf("unknown key id %d", keyID)
	}
	return k, nil
}

func TestAppendVerifyTrailerRoundTrip(t *testing.T) {
	steward := mapSteward{1: []byte("supersecretkey")}
	segment := []byte{0x09, 0x01, 0x02, 0x03}

	trailered := AppendTrailer(segment, 1, steward[1])
	body, ok, err := VerifyTrailer(trailered, steward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, segment, body)
}

func TestVerifyTrailerRejectsTamperedBody(t *testing.T) {
	steward := mapSteward{1: []byte("supersecretkey")}
	segment := []byte{0x09, 0x01, 0x02, 0x03}
	trailered := AppendTrailer(segment, 1, steward[1])
	trailered[0] ^= 0xff // flip a body bit after the trailer was computed

	_, ok, err := VerifyTrailer(trailered, steward)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyTrailerUnknownKeyDropsSilently(t *testing.T) {
	steward := mapSteward{1: []byte("supersecretkey")}
	segment := []byte{0x09, 0x01, 0x02, 0x03}
	trailered := AppendTrailer(segment, 42, []byte("otherkey"))

	_, ok, err := VerifyTrailer(trailered, steward)
	require.NoError(t, err)
	require.False(t, ok)
}
