package sdnv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 35, 1<<64 - 1}
	for _, v := range values {
		enc := Encode(nil, v)
		require.Equal(t, Len(v), len(enc))
		got, n, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, len(enc), n)
		require.Equal(t, v, got)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode([]byte{0x81, 0x82})
	require.Error(t, err)
}

func TestReaderChunked(t *testing.T) {
	enc := Encode(nil, 1<<20+42)
	var r Reader
	consumed := 0
	for _, b := range enc {
		if r.Done() {
			break
		}
		n := r.Feed([]byte{b})
		consumed += n
	}
	require.True(t, r.Done())
	require.Equal(t, len(enc), consumed)
	require.Equal(t, uint64(1<<20+42), r.Value())
}

func TestReaderSplitAcrossCalls(t *testing.T) {
	enc := Encode(nil, 300)
	require.True(t, len(enc) >= 2)
	var r Reader
	r.Feed(enc[:1])
	require.False(t, r.Done())
	r.Feed(enc[1:])
	require.True(t, r.Done())
	require.Equal(t, uint64(300), r.Value())
}
