package bundle

import (
	"fmt"

	"github.com/cuemby/dtnd/pkg/eid"
	"github.com/cuemby/dtnd/pkg/sdnv"
)

// Codec produces and consumes a bundle's BPv6 wire image: a primary block
// followed by an ordered sequence of extension blocks, terminated by the
// block carrying FlagLastBlock.
//
// spec §4.2 specifies produce/consume as resumable, offset/max-bounded
// calls so a CLA can fill a fixed-size send buffer across many calls. This
// implementation's CLAs (pkg/cla) always frame a whole bundle before
// calling Produce/Consume — sockets deliver a complete datagram (UDP/LTP)
// or a length-prefixed stream record (TCP) — so Produce/Consume build and
// parse the complete wire image in one pass rather than threading an
// explicit resume cursor through every BlockProcessor. Per-block streaming
// still goes through Processor.Consume/Process/Mutate, which is where
// spec §4.2's chunk-tolerance requirement actually bites (a digest or
// decrypt pass over a large payload block).
type Codec struct {
	Registry *Registry
}

// NewCodec creates a codec backed by the given block-processor registry.
func NewCodec(reg *Registry) *Codec {
	return &Codec{Registry: reg}
}

// Produce serializes b's primary block plus the xmit-block list prepared
// for linkName into a single wire image.
func (c *Codec) Produce(b *Bundle, linkName string) ([]byte, error) {
	xb, ok := func() (*XmitBlockList, bool) {
		b.mu.Lock()
		defer b.mu.Unlock()
		xb, ok := b.xmitBlocks[linkName]
		return xb, ok
	}()
	if !ok {
		return nil, fmt.Errorf("bundle: no xmit blocks prepared for link %q", linkName)
	}

	dict := xb.Dict
	primary := encodePrimary(b.Primary, dict)

	// Block preambles can still intern EID references into dict, so the
	// dictionary bytes are only final once every block has been walked —
	// build the block section first, then prefix the now-complete dict.
	var blocksBuf []byte
	for i, blk := range xb.Blocks {
		blk.Flags &^= FlagLastBlock
		if i == len(xb.Blocks)-1 {
			blk.Flags |= FlagLastBlock
		}
		blocksBuf = append(blocksBuf, encodeBlockPreamble(blk, dict)...)
		blocksBuf = append(blocksBuf, blk.Data...)
	}

	var out []byte
	out = sdnv.Encode(out, uint64(len(dict.Bytes())))
	out = append(out, dict.Bytes()...)
	out = append(out, primary...)
	out = append(out, blocksBuf...)
	return out, nil
}

// TotalLength returns the serialized length of a produced wire image. It
// builds the full image with Produce and returns its length.
func (c *Codec) TotalLength(b *Bundle, linkName string) (uint64, error) {
	img, err := c.Produce(b, linkName)
	if err != nil {
		return 0, err
	}
	return uint64(len(img)), nil
}

// Consume parses a complete wire image into a new Bundle. ReceivedBlocks
// preserve their OrigOffset into buf so security digests can re-walk the
// exact received bytes.
func (c *Codec) Consume(buf []byte) (*Bundle, int, error) {
	off := 0

	dictLen, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("bundle: dictionary length: %w", err)
	}
	off += n
	if off+int(dictLen) > len(buf) {
		return nil, 0, fmt.Errorf("bundle: truncated dictionary")
	}
	dict := LoadDictionary(buf[off : off+int(dictLen)])
	off += int(dictLen)

	primary, n, err := decodePrimary(buf[off:], dict)
	if err != nil {
		return nil, 0, fmt.Errorf("bundle: primary block: %w", err)
	}
	off += n

	b := New(primary, nil)

	for {
		if off >= len(buf) {
			return nil, 0, fmt.Errorf("bundle: missing last-block marker")
		}
		blk, consumed, err := c.decodeBlock(buf[off:], dict, off)
		if err != nil {
			return nil, 0, fmt.Errorf("bundle: block at offset %d: %w", off, err)
		}
		off += consumed
		b.ReceivedBlocks = append(b.ReceivedBlocks, blk)

		if blk.Type == BlockTypePayload {
			b.Payload = NewMemoryPayload(blk.Data)
		}
		if blk.Flags.Has(FlagLastBlock) {
			break
		}
	}
	return b, off, nil
}

// EncodeForStorage serializes a bundle's primary block plus its currently
// known block list into the same wire shape Consume parses back — the
// durable record format pkg/store writes, independent of any link's
// prepared xmit image. Received bundles store ReceivedBlocks; bundles
// created locally via the application API (never yet produced for a link)
// store APIBlocks instead.
func (c *Codec) EncodeForStorage(b *Bundle) ([]byte, error) {
	blocks := b.ReceivedBlocks
	if len(blocks) == 0 {
		blocks = b.APIBlocks
	}

	dict := NewDictionary()
	primary := encodePrimary(b.Primary, dict)

	var blocksBuf []byte
	for i, blk := range blocks {
		tmp := blk.Clone()
		tmp.Flags &^= FlagLastBlock
		if i == len(blocks)-1 {
			tmp.Flags |= FlagLastBlock
		}
		blocksBuf = append(blocksBuf, encodeBlockPreamble(tmp, dict)...)
		blocksBuf = append(blocksBuf, tmp.Data...)
	}

	var out []byte
	out = sdnv.Encode(out, uint64(len(dict.Bytes())))
	out = append(out, dict.Bytes()...)
	out = append(out, primary...)
	out = append(out, blocksBuf...)
	return out, nil
}

// DecodeFromStorage parses a record written by EncodeForStorage, then runs
// every block's reload_post_process (spec §4.7) so derived fields — a
// reconstructed Payload, security locals — are restored before the bundle
// re-enters the pending table.
func (c *Codec) DecodeFromStorage(buf []byte) (*Bundle, error) {
	b, _, err := c.Consume(buf)
	if err != nil {
		return nil, err
	}
	for _, blk := range b.ReceivedBlocks {
		if blk.Processor == nil {
			continue
		}
		if err := blk.Processor.ReloadPostProcess(b, blk); err != nil {
			return nil, fmt.Errorf("bundle: reload_post_process block %s: %w", blk.Type, err)
		}
	}
	return b, nil
}

func (c *Codec) decodeBlock(buf []byte, dict *Dictionary, baseOffset int) (*Block, int, error) {
	off := 0
	if len(buf) < 1 {
		return nil, 0, fmt.Errorf("truncated block type")
	}
	typ := BlockType(buf[off])
	off++

	flagsVal, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("block flags: %w", err)
	}
	off += n
	flags := Flags(flagsVal)

	var refs []eid.EID
	if flags.Has(FlagEIDRefsPresent) {
		count, n, err := sdnv.Decode(buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("eid ref count: %w", err)
		}
		off += n
		for i := uint64(0); i < count; i++ {
			schemeOff, n, err := sdnv.Decode(buf[off:])
			if err != nil {
				return nil, 0, err
			}
			off += n
			sspOff, n, err := sdnv.Decode(buf[off:])
			if err != nil {
				return nil, 0, err
			}
			off += n
			scheme, _ := dict.StringAt(schemeOff)
			ssp, _ := dict.StringAt(sspOff)
			refs = append(refs, eid.EID{Scheme: scheme, SSP: ssp})
		}
	}

	dataLen, n, err := sdnv.Decode(buf[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("data length: %w", err)
	}
	off += n
	if off+int(dataLen) > len(buf) {
		return nil, 0, fmt.Errorf("truncated block data: want %d have %d", dataLen, len(buf)-off)
	}

	blk := &Block{
		Type:       typ,
		Flags:      flags,
		EIDRefs:    refs,
		OrigOffset: uint64(baseOffset),
	}
	proc := c.Registry.Lookup(typ)
	blk.Processor = proc
	if _, err := proc.Consume(nil, blk, buf[off:off+int(dataLen)]); err != nil {
		return nil, 0, fmt.Errorf("processor consume: %w", err)
	}
	off += int(dataLen)
	return blk, off, nil
}

func encodeBlockPreamble(blk *Block, dict *Dictionary) []byte {
	var out []byte
	out = append(out, byte(blk.Type))
	out = sdnv.Encode(out, uint64(blk.Flags))
	if blk.Flags.Has(FlagEIDRefsPresent) {
		out = sdnv.Encode(out, uint64(len(blk.EIDRefs)))
		for _, r := range blk.EIDRefs {
			out = sdnv.Encode(out, dict.Intern(r.Scheme))
			out = sdnv.Encode(out, dict.Intern(r.SSP))
		}
	}
	out = sdnv.Encode(out, uint64(len(blk.Data)))
	return out
}

func encodePrimary(p PrimaryBlock, dict *Dictionary) []byte {
	var out []byte
	out = sdnv.Encode(out, uint64(p.Priority))
	out = sdnv.Encode(out, uint64(p.Flags))

	destS, destSSP := dict.Intern(p.Destination.Scheme), dict.Intern(p.Destination.SSP)
	srcS, srcSSP := dict.Intern(p.Source.Scheme), dict.Intern(p.Source.SSP)
	rtS, rtSSP := dict.Intern(p.ReplyTo.Scheme), dict.Intern(p.ReplyTo.SSP)
	cS, cSSP := dict.Intern(p.Custodian.Scheme), dict.Intern(p.Custodian.SSP)

	for _, v := range []uint64{destS, destSSP, srcS, srcSSP, rtS, rtSSP, cS, cSSP} {
		out = sdnv.Encode(out, v)
	}

	out = sdnv.Encode(out, p.Creation.Seconds)
	out = sdnv.Encode(out, p.Creation.Seq)
	out = sdnv.Encode(out, p.Lifetime)

	isFrag := uint64(0)
	if p.IsFragment {
		isFrag = 1
	}
	out = sdnv.Encode(out, isFrag)
	if p.IsFragment {
		out = sdnv.Encode(out, p.FragOffset)
		out = sdnv.Encode(out, p.OrigLen)
	}
	return out
}

func decodePrimary(buf []byte, dict *Dictionary) (PrimaryBlock, int, error) {
	off := 0
	readSDNV := func() (uint64, error) {
		v, n, err := sdnv.Decode(buf[off:])
		if err != nil {
			return 0, err
		}
		off += n
		return v, nil
	}

	priority, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("priority: %w", err)
	}
	flags, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("flags: %w", err)
	}

	readEID := func() (eid.EID, error) {
		schemeOff, err := readSDNV()
		if err != nil {
			return eid.EID{}, err
		}
		sspOff, err := readSDNV()
		if err != nil {
			return eid.EID{}, err
		}
		scheme, _ := dict.StringAt(schemeOff)
		ssp, _ := dict.StringAt(sspOff)
		return eid.EID{Scheme: scheme, SSP: ssp}, nil
	}

	dest, err := readEID()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("destination: %w", err)
	}
	src, err := readEID()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("source: %w", err)
	}
	replyTo, err := readEID()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("reply-to: %w", err)
	}
	custodian, err := readEID()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("custodian: %w", err)
	}

	seconds, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("creation seconds: %w", err)
	}
	seq, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("creation seq: %w", err)
	}
	lifetime, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("lifetime: %w", err)
	}
	isFrag, err := readSDNV()
	if err != nil {
		return PrimaryBlock{}, 0, fmt.Errorf("fragment flag: %w", err)
	}

	p := PrimaryBlock{
		Destination: dest,
		Source:      src,
		ReplyTo:     replyTo,
		Custodian:   custodian,
		Priority:    Priority(priority),
		Flags:       DeliveryOpts(flags),
		Creation:    Timestamp{Seconds: seconds, Seq: seq},
		Lifetime:    lifetime,
	}
	if isFrag != 0 {
		p.IsFragment = true
		fragOff, err := readSDNV()
		if err != nil {
			return PrimaryBlock{}, 0, fmt.Errorf("fragment offset: %w", err)
		}
		origLen, err := readSDNV()
		if err != nil {
			return PrimaryBlock{}, 0, fmt.Errorf("original length: %w", err)
		}
		p.FragOffset = fragOff
		p.OrigLen = origLen
	}
	return p, off, nil
}
