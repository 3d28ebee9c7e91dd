package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyAPIAddrEnvNoOverride(t *testing.T) {
	t.Setenv("DTNAPI_ADDR", "")
	t.Setenv("DTNAPI_PORT", "")
	require.Equal(t, "127.0.0.1:4556", applyAPIAddrEnv("127.0.0.1:4556"))
}

func TestApplyAPIAddrEnvHostOverride(t *testing.T) {
	t.Setenv("DTNAPI_ADDR", "0.0.0.0")
	t.Setenv("DTNAPI_PORT", "")
	require.Equal(t, "0.0.0.0:4556", applyAPIAddrEnv("127.0.0.1:4556"))
}

func TestApplyAPIAddrEnvPortOverride(t *testing.T) {
	t.Setenv("DTNAPI_ADDR", "")
	t.Setenv("DTNAPI_PORT", "5000")
	require.Equal(t, "127.0.0.1:5000", applyAPIAddrEnv("127.0.0.1:4556"))
}

func TestApplyAPIAddrEnvBothOverride(t *testing.T) {
	t.Setenv("DTNAPI_ADDR", "10.0.0.1")
	t.Setenv("DTNAPI_PORT", "6000")
	require.Equal(t, "10.0.0.1:6000", applyAPIAddrEnv("127.0.0.1:4556"))
}

func TestApplyAPIAddrEnvMalformedAddrPassesThrough(t *testing.T) {
	t.Setenv("DTNAPI_ADDR", "")
	t.Setenv("DTNAPI_PORT", "")
	require.Equal(t, "not-an-addr", applyAPIAddrEnv("not-an-addr"))
}

func TestLTPEngineIDSeedIsNonZeroAndVaries(t *testing.T) {
	a := ltpEngineIDSeed()
	b := ltpEngineIDSeed()
	require.NotZero(t, a)
	require.NotZero(t, b)
	require.NotEqual(t, a, b)
}
