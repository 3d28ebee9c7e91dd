package bundle

// LinkInfo is the minimal view of an outbound link a BlockProcessor needs
// when deciding what to generate; it is satisfied by pkg/link.Link without
// this package importing pkg/link (which itself holds bundle queues).
type LinkInfo interface {
	Name() string
	MTU() uint64
	NextHop() string
}

// Processor is a block processor per spec §4.2: one polymorphic
// implementation per block type, registered in a Registry and invoked by
// the codec and daemon at the points named below.
type Processor interface {
	// Type returns the block type this processor handles.
	Type() BlockType

	// Consume incrementally parses wire bytes into blk's Data, tolerating
	// calls that split in the middle of the block (including its
	// preamble). It returns the number of bytes consumed from data.
	Consume(b *Bundle, blk *Block, data []byte) (consumed int, err error)

	// Validate is invoked once after a bundle has been fully received. It
	// returns ok=true if the block is acceptable, or a reception/deletion
	// reason pair describing why not.
	Validate(b *Bundle, blocks []*Block, blk *Block) (ok bool, receptionReason, deletionReason StatusReason)

	// Prepare decides whether/how this block is included in the outbound
	// image for the given link, appending zero or more blocks (typically
	// copied from b's received/api blocks) to xmit.
	Prepare(b *Bundle, xmit *XmitBlockList, source LinkInfo, link LinkInfo) error

	// Generate fills in fields of blk that do not depend on other outbound
	// blocks. It must route dictionary-building EID writes through
	// xmit.Dict.Intern rather than writing raw strings.
	Generate(b *Bundle, xmit *XmitBlockList, blk *Block, link LinkInfo, last bool) error

	// Finalize computes fields that depend on other blocks (digests,
	// ciphertexts). Blocks are finalized in reverse order so that a
	// security block finalized last can see the final bytes of every
	// block it covers.
	Finalize(b *Bundle, xmit *XmitBlockList, blk *Block, link LinkInfo) error

	// Process streams blk's bytes in [offset,offset+length) to cb, without
	// mutating them. Used by digest and decrypt passes.
	Process(blk *Block, offset, length uint64, cb func([]byte) error) error

	// Mutate streams and replaces blk's bytes in [offset,offset+length).
	// Used by encrypt/decrypt-in-place passes.
	Mutate(blk *Block, offset, length uint64, cb func([]byte) ([]byte, error)) error

	// ReloadPostProcess reconstructs derived, non-serialized fields (e.g.
	// security locals) after a bundle is read back from the store.
	ReloadPostProcess(b *Bundle, blk *Block) error
}

// PassThrough is the opaque processor assigned to block types with no
// registered handler: it stores bytes verbatim and passes them through on
// transmit unmodified, per spec §3's invariant that every block has either
// a known processor or this fallback.
type PassThrough struct {
	BlockType BlockType
}

func (p *PassThrough) Type() BlockType { return p.BlockType }

func (p *PassThrough) Consume(b *Bundle, blk *Block, data []byte) (int, error) {
	blk.Data = append(blk.Data, data...)
	return len(data), nil
}

func (p *PassThrough) Validate(b *Bundle, blocks []*Block, blk *Block) (bool, StatusReason, StatusReason) {
	return true, ReasonNoAdditionalInfo, ReasonNoAdditionalInfo
}

func (p *PassThrough) Prepare(b *Bundle, xmit *XmitBlockList, source, link LinkInfo) error {
	if blk := findReceivedBlock(b, p.BlockType); blk != nil {
		cp := blk.Clone()
		cp.Flags |= FlagForwardedWithoutProcessing
		xmit.Blocks = append(xmit.Blocks, cp)
	}
	return nil
}

func (p *PassThrough) Generate(b *Bundle, xmit *XmitBlockList, blk *Block, link LinkInfo, last bool) error {
	if last {
		blk.Flags |= FlagLastBlock
	}
	return nil
}

func (p *PassThrough) Finalize(b *Bundle, xmit *XmitBlockList, blk *Block, link LinkInfo) error {
	return nil
}

func (p *PassThrough) Process(blk *Block, offset, length uint64, cb func([]byte) error) error {
	return cb(sliceOf(blk.Data, offset, length))
}

func (p *PassThrough) Mutate(blk *Block, offset, length uint64, cb func([]byte) ([]byte, error)) error {
	out, err := cb(sliceOf(blk.Data, offset, length))
	if err != nil {
		return err
	}
	copy(blk.Data[offset:offset+length], out)
	return nil
}

func (p *PassThrough) ReloadPostProcess(b *Bundle, blk *Block) error { return nil }

func sliceOf(data []byte, offset, length uint64) []byte {
	if offset+length > uint64(len(data)) {
		return nil
	}
	return data[offset : offset+length]
}

func findReceivedBlock(b *Bundle, t BlockType) *Block {
	for _, blk := range b.ReceivedBlocks {
		if blk.Type == t {
			return blk
		}
	}
	return nil
}

// Registry maps block type codes to the Processor that handles them.
type Registry struct {
	procs map[BlockType]Processor
}

// NewRegistry creates a registry with a PassThrough default already
// available via Lookup for any type not explicitly registered.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[BlockType]Processor)}
}

// Register adds or replaces the processor for its own Type().
func (r *Registry) Register(p Processor) {
	r.procs[p.Type()] = p
}

// Lookup returns the processor for t, or a PassThrough if none was
// registered — spec §3's invariant that every block resolves to a
// processor.
func (r *Registry) Lookup(t BlockType) Processor {
	if p, ok := r.procs[t]; ok {
		return p
	}
	return &PassThrough{BlockType: t}
}
