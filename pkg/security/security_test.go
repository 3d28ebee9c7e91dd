package security

import (
	"testing"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/stretchr/testify/require"
)

func testBundle() *bundle.Bundle {
	p := bundle.PrimaryBlock{
		Destination: eid.MustParse("dtn://b/demux"),
		Source:      eid.MustParse("dtn://a/demux"),
		Creation:    bundle.Timestamp{Seconds: 1, Seq: 0},
		Lifetime:    3600,
	}
	b := bundle.New(p, bundle.NewMemoryPayload([]byte("hello world")))
	b.ReceivedBlocks = append(b.ReceivedBlocks, &bundle.Block{Type: bundle.BlockTypePayload, Data: []byte("hello world")})
	return b
}

func TestBA1RoundTrip(t *testing.T) {
	steward := NewInMemoryKeySteward()
	src, dst := eid.MustParse("dtn://a/demux"), eid.MustParse("dtn://b/demux")
	key := []byte("preshared-secret-key")
	steward.SetHMACKey(src, key)
	steward.SetHMACKey(dst, key)

	b := testBundle()
	proc := BA1Processor{Steward: steward}
	blk := &bundle.Block{Type: bundle.BlockTypeBundleAuthentication}
	require.NoError(t, proc.Generate(b, &bundle.XmitBlockList{}, blk, nil, true))

	ok, _, _ := proc.Validate(b, b.AllBlocks(), blk)
	require.True(t, ok)
}

func TestBA1RejectsTamperedPayload(t *testing.T) {
	steward := NewInMemoryKeySteward()
	src, dst := eid.MustParse("dtn://a/demux"), eid.MustParse("dtn://b/demux")
	key := []byte("preshared-secret-key")
	steward.SetHMACKey(src, key)
	steward.SetHMACKey(dst, key)

	b := testBundle()
	proc := BA1Processor{Steward: steward}
	blk := &bundle.Block{Type: bundle.BlockTypeBundleAuthentication}
	require.NoError(t, proc.Generate(b, &bundle.XmitBlockList{}, blk, nil, true))

	b.ReceivedBlocks[0].Data = []byte("tampered!!!!")
	ok, _, delReason := proc.Validate(b, b.AllBlocks(), blk)
	require.False(t, ok)
	require.Equal(t, bundle.ReasonSecurityFailed, delReason)
}

func TestPI2RoundTrip(t *testing.T) {
	steward := NewInMemoryKeySteward()
	src := eid.MustParse("dtn://a/demux")
	_, err := steward.GenerateRSAKeyPair(src)
	require.NoError(t, err)

	b := testBundle()
	proc := PI2Processor{Steward: steward}
	blk := &bundle.Block{Type: bundle.BlockTypePayloadIntegrity}
	require.NoError(t, proc.Generate(b, &bundle.XmitBlockList{}, blk, nil, true))

	ok, _, _ := proc.Validate(b, b.AllBlocks(), blk)
	require.True(t, ok)
}

func TestPC3RoundTrip(t *testing.T) {
	steward := NewInMemoryKeySteward()
	dst := eid.MustParse("dtn://b/demux")
	_, err := steward.GenerateRSAKeyPair(dst)
	require.NoError(t, err)

	b := testBundle()
	payloadBlk := b.AllBlocks()[0]
	xmit := &bundle.XmitBlockList{Blocks: []*bundle.Block{payloadBlk}}
	proc := PC3Processor{Steward: steward}
	pc3Blk := &bundle.Block{Type: bundle.BlockTypePayloadConfidentiality}
	xmit.Blocks = append(xmit.Blocks, pc3Blk)

	require.NoError(t, proc.Generate(b, xmit, pc3Blk, nil, true))
	require.NotEqual(t, "hello world", string(payloadBlk.Data))

	ok, _, _ := proc.Validate(b, xmit.Blocks, pc3Blk)
	require.True(t, ok)
	require.Equal(t, "hello world", string(payloadBlk.Data))
}

func TestES4RoundTrip(t *testing.T) {
	steward := NewInMemoryKeySteward()
	dst := eid.MustParse("dtn://b/demux")
	_, err := steward.GenerateRSAKeyPair(dst)
	require.NoError(t, err)

	b := testBundle()
	ageBlk := &bundle.Block{Type: bundle.BlockTypeAge, Data: []byte{0x10}}
	xmit := &bundle.XmitBlockList{Blocks: []*bundle.Block{ageBlk}}
	proc := ES4Processor{Steward: steward, Target: bundle.BlockTypeAge}
	es4Blk := &bundle.Block{Type: bundle.BlockTypeExtensionSecurity}
	xmit.Blocks = append(xmit.Blocks, es4Blk)

	require.NoError(t, proc.Generate(b, xmit, es4Blk, nil, true))
	require.NotEqual(t, []byte{0x10}, ageBlk.Data)

	ok, _, _ := proc.Validate(b, xmit.Blocks, es4Blk)
	require.True(t, ok)
	require.Equal(t, []byte{0x10}, ageBlk.Data)
}

func TestItemListRoundTrip(t *testing.T) {
	list := ItemList{
		{Type: ItemIV, Value: []byte{1, 2, 3}},
		{Type: ItemICV, Value: []byte("some-tag-bytes")},
	}
	decoded, err := DecodeItemList(list.Encode())
	require.NoError(t, err)
	require.Equal(t, list, decoded)

	iv, ok := decoded.Get(ItemIV)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, iv.Value)
}
