package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cuemby/dtnd/pkg/bundle"
)

const pc3KeySize = 16 // AES-128

// PC3Processor implements the PC3 ciphersuite: payload confidentiality via
// AES-128-GCM with a random per-bundle content-encryption key, wrapped with
// RSA-OAEP for the security destination. The PC3 block carries the wrapped
// key, IV and GCM tag; the payload block's Data is replaced in place by the
// ciphertext (spec §4.8).
//
// Generate assumes the payload block's plaintext has already been written
// by PayloadProcessor.Generate earlier in the same xmit pass — the driver
// that walks a link's xmit-block list must Prepare/Generate the payload
// block before the PC3 block for this to hold.
type PC3Processor struct {
	Steward KeySteward
}

func (PC3Processor) Type() bundle.BlockType { return bundle.BlockTypePayloadConfidentiality }

func (PC3Processor) Consume(b *bundle.Bundle, blk *bundle.Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (p PC3Processor) Validate(b *bundle.Bundle, blocks []*bundle.Block, blk *bundle.Block) (bool, bundle.StatusReason, bundle.StatusReason) {
	params, err := DecodeItemList(blk.Data)
	if err != nil {
		return false, bundle.ReasonBlockUnintelligible, bundle.ReasonBlockUnintelligible
	}
	wrapped, ok := params.Get(ItemKeyInfo)
	if !ok {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	iv, ok := params.Get(ItemIV)
	if !ok {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	tag, ok := params.Get(ItemICV)
	if !ok {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	payloadBlk := findBlockType(blocks, bundle.BlockTypePayload)
	if payloadBlk == nil {
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
	plain, err := aesGCMOpen(key, iv.Value, append(append([]byte(nil), payloadBlk.Data...), tag.Value...))
	if err != nil {
		return false, bundle.ReasonSecurityFailed, bundle.ReasonSecurityFailed
	}
	payloadBlk.Data = plain
	return true, bundle.ReasonNoAdditionalInfo, bundle.ReasonNoAdditionalInfo
}

func (PC3Processor) Prepare(b *bundle.Bundle, xmit *bundle.XmitBlockList, source, link bundle.LinkInfo) error {
	blk := &bundle.Block{Type: bundle.BlockTypePayloadConfidentiality, Flags: bundle.FlagDeleteBundleIfCantProcess}
	xmit.Blocks = append(xmit.Blocks, blk)
	return nil
}

func (p PC3Processor) Generate(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo, last bool) error {
	payloadBlk := findBlockType(xmit.Blocks, bundle.BlockTypePayload)
	if payloadBlk == nil {
		return fmt.Errorf("security: PC3 requires a payload block in the same xmit list")
	}
	pub, err := p.Steward.RSAPublicKey(b.Primary.Destination)
	if err != nil {
		return fmt.Errorf("security: PC3 key for %s: %w", b.Primary.Destination, err)
	}

	key := make([]byte, pc3KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return fmt.Errorf("security: PC3 session key: %w", err)
	}
	sealed, iv, err := aesGCMSeal(key, payloadBlk.Data)
	if err != nil {
		return fmt.Errorf("security: PC3 encrypt: %w", err)
	}
	tagStart := len(sealed) - aesGCMTagSize
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return fmt.Errorf("security: PC3 wrap key: %w", err)
	}

	payloadBlk.Data = ciphertext
	result := ItemList{
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

func (PC3Processor) Finalize(b *bundle.Bundle, xmit *bundle.XmitBlockList, blk *bundle.Block, link bundle.LinkInfo) error {
	return nil
}

func (PC3Processor) Process(blk *bundle.Block, offset, length uint64, cb func([]byte) error) error {
	return cb(blk.Data)
}

func (PC3Processor) Mutate(blk *bundle.Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(blk.Data)
	if err != nil {
		return err
	}
	blk.Data = out
	return nil
}

func (PC3Processor) ReloadPostProcess(b *bundle.Bundle, blk *bundle.Block) error { return nil }

func findBlockType(blocks []*bundle.Block, t bundle.BlockType) *bundle.Block {
	for _, blk := range blocks {
		if blk.Type == t {
			return blk
		}
	}
	return nil
}

const aesGCMTagSize = 16

func aesGCMSeal(key, plaintext []byte) (sealed, iv []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, err
	}
	sealed = gcm.Seal(nil, iv, plaintext, nil)
	return sealed, iv, nil
}

func aesGCMOpen(key, iv, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, sealed, nil)
}
