package ltp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeRangeCoalescesAdjacentAndOverlapping(t *testing.T) {
	r := newReceiverSession(SessionID{1, 1})
	r.mergeRange(0, 100)
	r.mergeRange(100, 50) // adjacent, should merge into one [0,150)
	require.Equal(t, []Claim{{Offset: 0, Length: 150}}, r.RedRanges)

	r.mergeRange(200, 50) // disjoint gap [150,200)
	require.Equal(t, []Claim{{Offset: 0, Length: 150}, {Offset: 200, Length: 50}}, r.RedRanges)

	r.mergeRange(140, 80) // overlaps both existing ranges, should merge all three into one
	require.Equal(t, []Claim{{Offset: 0, Length: 250}}, r.RedRanges)
}

func TestCoversPrefix(t *testing.T) {
	r := newReceiverSession(SessionID{1, 1})
	require.True(t, r.coversPrefix(0))
	require.False(t, r.coversPrefix(10))

	r.mergeRange(0, 50)
	require.True(t, r.coversPrefix(50))
	require.False(t, r.coversPrefix(51))

	r.mergeRange(60, 10) // gap at [50,60)
	require.False(t, r.coversPrefix(70))
}

func TestGapsFromClaims(t *testing.T) {
	claims := []Claim{{Offset: 0, Length: 100}, {Offset: 200, Length: 50}}
	gaps := gapsFromClaims(claims, 300)
	require.Equal(t, []Claim{{Offset: 100, Length: 100}, {Offset: 250, Length: 50}}, gaps)
}

func TestGapsFromClaimsFullyCovered(t *testing.T) {
	claims := []Claim{{Offset: 0, Length: 300}}
	require.Empty(t, gapsFromClaims(claims, 300))
}

func TestReceiverSessionGapsMatchesMergedRanges(t *testing.T) {
	r := newReceiverSession(SessionID{1, 1})
	r.mergeRange(0, 40)
	r.mergeRange(60, 40) // missing [40,60)
	require.Equal(t, []Claim{{Offset: 40, Length: 20}}, r.gaps(100))
}
