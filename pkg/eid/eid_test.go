package eid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAndAccessors(t *testing.T) {
	e, err := Parse("dtn://node/app")
	require.NoError(t, err)
	require.Equal(t, "dtn", e.Scheme)
	require.Equal(t, "node", e.Authority())
	require.Equal(t, "/app", e.Demux())
	require.Equal(t, "dtn://node/app", e.String())
}

func TestParseIPN(t *testing.T) {
	e := MustParse("ipn:5.2")
	require.Equal(t, "5", e.Authority())
	require.Equal(t, "2", e.Demux())
}

func TestMatchWildcardAuthority(t *testing.T) {
	pattern := MustParse("dtn://*/app")
	require.True(t, Match(pattern, MustParse("dtn://node1/app")))
	require.True(t, Match(pattern, MustParse("dtn://node2/app")))
	require.False(t, Match(pattern, MustParse("dtn://node2/other")))
}

func TestMatchWildcardSSP(t *testing.T) {
	pattern := MustParse("dtn://node/*")
	require.True(t, Match(pattern, MustParse("dtn://node/anything")))
}

func TestIsLocal(t *testing.T) {
	local := MustParse("dtn://node/app")
	require.True(t, IsLocal(local, MustParse("dtn://node/other")))
	require.False(t, IsLocal(local, MustParse("dtn://peer/other")))
}

func TestNone(t *testing.T) {
	require.True(t, None.IsNone())
	require.False(t, MustParse("dtn://node/app").IsNone())
}
