package blockproc

import (
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
)

// PayloadProcessor handles BlockTypePayload: on receive it accumulates the
// raw payload bytes (bundle.Codec lifts the block's Data into b.Payload as
// soon as the payload block is decoded), and on transmit it copies the
// outbound bundle's payload bytes (respecting any fragmentation already
// applied to b.Payload) into the xmit block.
type PayloadProcessor struct{}

func (PayloadProcessor) Type() bundle.BlockType { return bundle.BlockTypePayload }

func (PayloadProcessor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (PayloadProcessor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	expected := b.Primary.OrigLen
	if !b.Primary.IsFragment {
		// Non-fragment bundles still carry OrigLen == payload length by
		// convention (the invariant in spec §3); tolerate zero meaning
		// "unset" for bundles built purely from wire bytes.
		if expected != 0 && uint64(len(blk.Data)) != expected {
			return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
		}
	}
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (PayloadProcessor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	blk := &bundle.Block{Type: bundle.BlockTypePayload}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

func (PayloadProcessor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	if b.Payload == nil {
		return fmt.Errorf("blockproc: bundle %d has no payload", b.LocalID)
	}
	data, err := b.Payload.ReadAll()
	if err != nil {
		return fmt.Errorf("blockproc: read payload: %w", err)
	}
	blk.Data = data
	if last {
		blk.Flags |= bundle.FlagLastBlock
	}
	return nil
}

func (PayloadProcessor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (PayloadProcessor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	if offset+length > uint64(len(blk.Data)) {
		return fmt.Errorf("blockproc: payload range out of bounds")
	}
	return cb(blk.Data[offset : offset+length])
}

func (PayloadProcessor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	if offset+length > uint64(len(blk.Data)) {
		return fmt.Errorf("blockproc: payload range out of bounds")
	}
	out, err := cb(blk.Data[offset : offset+length])
	if err != nil {
		return err
	}
	copy(blk.Data[offset:offset+length], out)
	return nil
}

func (PayloadProcessor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error {
	if b.Payload == nil {
		b.Payload = bundle.NewMemoryPayload(blk.Data)
	}
	return nil
}
