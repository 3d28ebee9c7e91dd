package blockproc

import (
	"testing"
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T, creation time.Time) *bundle.Bundle {
	t.Helper()
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: uint64(creation.Sub(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)) / time.Second), Seq: 0},
		Lifetime:    3600,
	}
	return bundle.New(p, bundle.NewMemoryPayload([]byte("hi")))
}

func TestAgeProcessorGenerateFromCreation(t *testing.T) {
	created := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	b := newTestBundle(t, created)

	proc := AgeProcessor{Now: func() time.Time { return created.Add(5 * time.Second) }}
	blk := &bundle.Block{Type: bundle.BlockTypeAge}
	require.NoError(t, proc.Generate(b, &bundle.XmitBlockList{}, blk, nil, true))
	require.True(t, blk.Flags.Has(bundle.FlagLastBlock))

	age, ok := AccumulatedAge(&bundle.Bundle{ReceivedBlocks: []*bundle.Block{blk}})
	require.True(t, ok)
	require.InDelta(t, 5*time.Second, age, float64(time.Millisecond))
}

func TestAgeProcessorAccumulatesAcrossHops(t *testing.T) {
	created := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	b := newTestBundle(t, created)

	firstHop := AgeProcessor{Now: func() time.Time { return created.Add(2 * time.Second) }}
	blk := &bundle.Block{Type: bundle.BlockTypeAge}
	require.NoError(t, firstHop.Generate(b, &bundle.XmitBlockList{}, blk, nil, false))
	b.ReceivedBlocks = append(b.ReceivedBlocks, blk)

	secondHop := AgeProcessor{Now: func() time.Time { return created.Add(2*time.Second + 500*time.Millisecond) }}
	blk2 := &bundle.Block{Type: bundle.BlockTypeAge}
	require.NoError(t, secondHop.Generate(b, &bundle.XmitBlockList{}, blk2, nil, true))

	age, ok := AccumulatedAge(&bundle.Bundle{ReceivedBlocks: []*bundle.Block{blk2}})
	require.True(t, ok)
	require.Greater(t, age, 2*time.Second)
}

func TestAgeProcessorValidateRejectsGarbage(t *testing.T) {
	proc := AgeProcessor{}
	blk := &bundle.Block{Type: bundle.BlockTypeAge, Data: []byte{0x80, 0x80, 0x80}}
	ok, recv, del := proc.Validate(nil, nil, blk)
	require.False(t, ok)
	require.Equal(t, bundle.ReasonBlockUnintelligible, recv)
	require.Equal(t, bundle.ReasonBlockUnintelligible, del)
}

func TestAccumulatedAgeMissing(t *testing.T) {
	_, ok := AccumulatedAge(&bundle.Bundle{})
	require.False(t, ok)
}
