package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/cuemby/dtnd/pkg/bundle"
)

// ES4Processor implements the ES4 ciphersuite: the same AES-128-GCM /
// RSA-OAEP-wrapped-key crypto as PC3, applied to an arbitrary extension
// block via encapsulation rather than always targeting the payload. Target
// identifies which block type this processor instance protects; a bundle
// with several ES4-protected extension blocks uses one ES4Processor per
// target, matching one block processor per wire block-type the registry
// already assumes.
type ES4Processor struct {
	Steward KeySteward
	Target  bundle.BlockType
}

func (ES4Processor) Type() bundle.BlockType { return bundle.BlockTypeExtensionSecurity }

func (ES4Processor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (p ES4Processor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	params, err := DecodeItemList(blk.Data)
	if err != nil {
		return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
	}
	encap, ok := params.Get(ItemEncapsulatedBlock)
	if !ok || len(encap.Value) != 1 {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	targetType := bundle.BlockType(encap.Value[0])
	wrapped, ok1 := params.Get(ItemKeyInfo)
	iv, ok2 := params.Get(ItemIV)
	tag, ok3 := params.Get(ItemICV)
	if !ok1 || !ok2 || !ok3 {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	target := findBlockType(blocks, targetType)
	if target == nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}

	priv, err := p.Steward.RSAPrivateKey(b.Primary.Destination)
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped.Value, nil)
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	plain, err := aesGCMOpen(key, iv.Value, append(append([]byte(nil), target.Data...), tag.Value...))
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	target.Data = plain
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (ES4Processor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	blk := &bundle.Block{Type: bundle.BlockTypeExtensionSecurity, Flags: bundle.FlagDiscardIfCantProcess}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

func (p ES4Processor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	target := findBlockType(xmit.Blocks, p.Target)
	if target == nil {
		return fmt.Errorf("security: ES4 target block type %s not present", p.Target)
	}
	pub, err := p.Steward.RSAPublicKey(b.Primary.Destination)
	if err != nil {
		return fmt.Errorf("security: ES4 key for %s: %w", b.Primary.Destination, err)
	}

	key := make([]byte, pc3KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("security: ES4 session key: %w", err)
	}
	sealed, iv, err := aesGCMSeal(key, target.Data)
	if err != nil {
		return fmt.Errorf("security: ES4 encrypt: %w", err)
	}
	tagStart := len(sealed) - aesGCMTagSize
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return fmt.Errorf("security: ES4 wrap key: %w", err)
	}

	target.Data = ciphertext
	result := ItemList{
		{Type: ItemEncapsulatedBlock, Value: []byte{byte(p.Target)}},
		{Type: ItemKeyInfo, Value: wrapped},
		{Type: ItemIV, Value: iv},
		{Type: ItemICV, Value: tag},
	}
	blk.Data = result.Encode()
	local := localOf(blk)
	local.SecuritySource, local.SecurityDestination, local.Result = b.Primary.Source, b.Primary.Destination, result
	if last {
		blk.Flags |= bundle.FlagLastBlock
	}
	return nil
}

func (ES4Processor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (ES4Processor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	return cb(blk.Data)
}

func (ES4Processor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(blk.Data)
	if err != nil {
		return err
	}
	blk.Data = out
	return nil
}

func (ES4Processor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error { return nil }
