package security

import (
	"crypto/hmac"
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
)

// BA1Processor implements the BA1 ciphersuite: bundle authentication via
// HMAC-SHA1 with a preshared symmetric key, covering every block in the
// bundle (spec §4.8).
type BA1Processor struct {
	Steward KeySteward
}

func (BA1Processor) Type() bundle.BlockType { return bundle.BlockTypeBundleAuthentication }

func (p BA1Processor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (p BA1Processor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	result, err := DecodeItemList(blk.Data)
	if err != nil {
		return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
	}
	icv, ok := result.Get(ItemICV)
	if !ok {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	key, err := p.Steward.HMACKey(b.Primary.Source)
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	want := hmacSHA1Sum(key, canonicalBytes(b, blk))
	if !hmac.Equal(icv.Value, want) {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (p BA1Processor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	blk := &bundle.Block{Type: bundle.BlockTypeBundleAuthentication, Flags: bundle.FlagDeleteBundleIfCantProcess}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

func (p BA1Processor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	key, err := p.Steward.HMACKey(b.Primary.Destination)
	if err != nil {
		return fmt.Errorf("security: BA1 key for %s: %w", b.Primary.Destination, err)
	}
	icv := hmacSHA1Sum(key, canonicalBytes(b, blk))
	result := ItemList{{Type: ItemICV, Value: icv}}
	blk.Data = result.Encode()
	local := localOf(blk)
	local.SecuritySource, local.SecurityDestination, local.Result = b.Primary.Source, b.Primary.Destination, result
	if last {
		blk.Flags |= bundle.FlagLastBlock
	}
	return nil
}

func (BA1Processor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (BA1Processor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	return cb(blk.Data)
}

func (BA1Processor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(blk.Data)
	if err != nil {
		return err
	}
	blk.Data = out
	return nil
}

func (BA1Processor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error { return nil }
