package bundle

import (
	"sync"
	"sync/atomic"
)

// ForwardLogState is the disposition of a forwarding attempt recorded in a
// bundle's forwarding log.
type ForwardLogState uint8

const (
	ForwardPending ForwardLogState = iota
	ForwardTransmitted
	ForwardTransmitFailed
	ForwardDelivered
	ForwardCancelled
)

// ForwardLogEntry records one attempt (or outcome) of forwarding a bundle
// over a link.
type ForwardLogEntry struct {
	LinkName string
	State    ForwardLogState
	Seconds  int64 // unix seconds, when the entry was recorded
}

// XmitBlockList is the per-link outbound image under construction: the
// ordered block list plus the shared EID dictionary being built as blocks
// are generated.
type XmitBlockList struct {
	LinkName string
	Blocks   []*Block
	Dict     *Dictionary
}

var nextLocalID uint64

// NewLocalID returns a fresh process-unique bundle local id. Local ids are
// never persisted or transmitted; they exist only to let in-memory
// containers (pending table, link queues, registrations) refer to the same
// Bundle object cheaply.
func NewLocalID() uint64 {
	return atomic.AddUint64(&nextLocalID, 1)
}

// Bundle is the DTN unit of transfer: a primary block, a payload, and the
// three block lists spec §3 distinguishes — ReceivedBlocks (as parsed off
// the wire, offsets preserved), APIBlocks (generated locally by this node),
// and XmitBlocks (one outbound image per link, built by Prepare/Generate/
// Finalize). It is reference-counted: OnFree fires exactly once, when the
// last strong reference is released.
type Bundle struct {
	LocalID uint64
	Primary PrimaryBlock
	Payload *Payload

	ReceivedBlocks []*Block
	APIBlocks      []*Block

	mu         sync.Mutex
	xmitBlocks map[string]*XmitBlockList
	forwardLog []ForwardLogEntry
	custodyID  string // fingerprint used by PendingAcsStore, if custody was accepted

	refs   int32
	OnFree func(*Bundle)
}

// New creates a bundle with refcount 1, owned by its first caller.
func New(primary PrimaryBlock, payload *Payload) *Bundle {
	return &Bundle{
		LocalID:    NewLocalID(),
		Primary:    primary,
		Payload:    payload,
		xmitBlocks: make(map[string]*XmitBlockList),
		refs:       1,
	}
}

// Retain increments the strong reference count and returns b.
func (b *Bundle) Retain() *Bundle {
	atomic.AddInt32(&b.refs, 1)
	return b
}

// Release decrements the strong reference count. Once it reaches zero, the
// bundle's payload is released and OnFree (if set) is invoked exactly once
// — the trigger for the daemon's BundleFree event (§4.1).
func (b *Bundle) Release() {
	if atomic.AddInt32(&b.refs, -1) > 0 {
		return
	}
	if b.Payload != nil {
		b.Payload.Release()
	}
	if b.OnFree != nil {
		b.OnFree(b)
	}
}

// RefCount returns the current strong reference count, for tests and
// invariant assertions.
func (b *Bundle) RefCount() int32 {
	return atomic.LoadInt32(&b.refs)
}

// AppendForwardLog records a forwarding attempt outcome.
func (b *Bundle) AppendForwardLog(e ForwardLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwardLog = append(b.forwardLog, e)
}

// ForwardLog returns a snapshot of the forwarding log.
func (b *Bundle) ForwardLog() []ForwardLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ForwardLogEntry(nil), b.forwardLog...)
}

// XmitBlocksFor returns (creating if necessary) the xmit-block list being
// built for linkName.
func (b *Bundle) XmitBlocksFor(linkName string) *XmitBlockList {
	b.mu.Lock()
	defer b.mu.Unlock()
	if xb, ok := b.xmitBlocks[linkName]; ok {
		return xb
	}
	xb := &XmitBlockList{LinkName: linkName, Dict: NewDictionary()}
	b.xmitBlocks[linkName] = xb
	return xb
}

// DropXmitBlocksFor discards the outbound image built for linkName, e.g.
// after it has been transmitted or the link is no longer a candidate.
func (b *Bundle) DropXmitBlocksFor(linkName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.xmitBlocks, linkName)
}

// SetCustodyID assigns the fingerprint used to key this bundle's entry in
// the PendingAcsStore once custody has been accepted for it.
func (b *Bundle) SetCustodyID(id string) {
	b.mu.Lock()
	b.custodyID = id
	b.mu.Unlock()
}

// CustodyID returns the custody fingerprint, or "" if custody was never
// accepted.
func (b *Bundle) CustodyID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.custodyID
}

// AllBlocks returns received blocks followed by locally generated api
// blocks — the set validate() and security digests walk in order.
func (b *Bundle) AllBlocks() []*Block {
	out := make([]*Block, 0, len(b.ReceivedBlocks)+len(b.APIBlocks))
	out = append(out, b.ReceivedBlocks...)
	out = append(out, b.APIBlocks...)
	return out
}
