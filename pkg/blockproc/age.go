package blockproc

import (
	"time"

	"github.com/cuemby/dtnd/pkg/bundle"
	"github.com/cuemby/dtnd/pkg/sdnv"
)

// AgeProcessor handles the age extension block (BlockTypeAge), a DTN2
// private-use addition (original_source/servlib/bundling/AgeBlockProcessor.cc)
// for bundles whose source has no reliable clock: the block carries a
// single SDNV of microseconds of accumulated store-and-forward age, updated
// at every node that relays the bundle rather than trusting the creation
// timestamp.
type AgeProcessor struct {
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (p AgeProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (AgeProcessor) Type() bundle.BlockType { return bundle.BlockTypeAge }

func (AgeProcessor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (AgeProcessor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	if _, _, err := sdnv.Decode(blk.Data); err != nil {
		return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
	}
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (AgeProcessor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	if ageBlockOf(b) == nil {
		return nil
	}
	blk := &bundle.Block{Type: bundle.BlockTypeAge, Flags: bundle.FlagDiscardIfCantProcess}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

// AccumulatedAge returns the current value of an existing age block, or
// zero if the bundle carries none.
func AccumulatedAge(b *bundle.Bundle) (time.Duration, bool) {
	blk := ageBlockOf(b)
	if blk == nil {
		return 0, false
	}
	us, _, err := sdnv.Decode(blk.Data)
	if err != nil {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

func ageBlockOf(b *bundle.Bundle) *bundle.Block {
	for _, blk := range b.ReceivedBlocks {
		if blk.Type == bundle.BlockTypeAge {
			return blk
		}
	}
	for _, blk := range b.APIBlocks {
		if blk.Type == bundle.BlockTypeAge {
			return blk
		}
	}
	return nil
}

func (p AgeProcessor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	prior, _ := AccumulatedAge(b)
	elapsed := p.now().Sub(b.Primary.Creation.Time())
	if elapsed < 0 {
		elapsed = 0
	}
	age := prior + elapsed
	blk.Data = sdnv.Encode(nil, uint64(age/time.Microsecond))
	if last {
		blk.Flags |= bundle.FlagLastBlock
	}
	return nil
}

func (AgeProcessor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (AgeProcessor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	return cb(blk.Data)
}

func (AgeProcessor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(blk.Data)
	if err != nil {
		return err
	}
	blk.Data = out
	return nil
}

func (AgeProcessor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error { return nil }
