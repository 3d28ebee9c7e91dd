package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
)

// PI2Processor implements the PI2 ciphersuite: payload integrity via an RSA
// signature (PKCS#1 v1.5) over the SHA-256 canonical digest of the bundle,
// excluding this block's own security-result and the flag bits a relay is
// allowed to mutate (spec §4.8).
type PI2Processor struct {
	Steward KeySteward
}

func (PI2Processor) Type() bundle.BlockType { return bundle.BlockTypePayloadIntegrity }

func (PI2Processor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (p PI2Processor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	result, err := DecodeItemList(blk.Data)
	if err != nil {
		return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
	}
	sig, ok := result.Get(ItemICV)
	if !ok {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	pub, err := p.Steward.RSAPublicKey(b.Primary.Source)
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	digest := canonicalDigest(b, blk)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig.Value); err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (PI2Processor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	blk := &bundle.Block{Type: bundle.BlockTypePayloadIntegrity, Flags: bundle.FlagDeleteBundleIfCantProcess}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

func (p PI2Processor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	priv, err := p.Steward.RSAPrivateKey(b.Primary.Source)
	if err != nil {
		return fmt.Errorf("security: PI2 key for %s: %w", b.Primary.Source, err)
	}
	digest := canonicalDigest(b, blk)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest)
	if err != nil {
		return fmt.Errorf("security: PI2 sign: %w", err)
	}
	result := ItemList{{Type: ItemICV, Value: sig}}
	blk.Data = result.Encode()
	local := localOf(blk)
	local.SecuritySource, local.SecurityDestination, local.Result = b.Primary.Source, b.Primary.Destination, result
	if last {
		blk.Flags |= bundle.FlagLastBlock
	}
	return nil
}

func (PI2Processor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (PI2Processor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	return cb(blk.Data)
}

func (PI2Processor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(blk.Data)
	if err != nil {
		return err
	}
	blk.Data = out
	return nil
}

func (PI2Processor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error { return nil }
