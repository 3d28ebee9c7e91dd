package bundle

import "github.com/cuemby/dtnd/pkg/eid"

// BlockType identifies the kind of an extension block. Values below 192 are
// the Bundle Protocol v6 registered codes (RFC 5050 §4.5); values in
// [192,255] are the private/experimental range DTN2 uses for the age block
// and similar local extensions.
type BlockType uint8

const (
	BlockTypeUnknown                BlockType = 0
	BlockTypePayload                BlockType = 1
	BlockTypeBundleAuthentication   BlockType = 2
	BlockTypePayloadIntegrity       BlockType = 3
	BlockTypePayloadConfidentiality BlockType = 4
	BlockTypeExtensionSecurity      BlockType = 7
	BlockTypeAge                    BlockType = 192
)

func (t BlockType) String() string {
	switch t {
	case BlockTypePayload:
		return "payload"
	case BlockTypeBundleAuthentication:
		return "bundle-authentication"
	case BlockTypePayloadIntegrity:
		return "payload-integrity"
	case BlockTypePayloadConfidentiality:
		return "payload-confidentiality"
	case BlockTypeExtensionSecurity:
		return "extension-security"
	case BlockTypeAge:
		return "age"
	default:
		return "unknown"
	}
}

// Flags is the block processing-control flag bitmask (RFC 5050 §4.3).
type Flags uint16

const (
	FlagReplicateInFragment        Flags = 1 << iota // block must be replicated into every fragment
	FlagReportIfCantProcess                           // transmit a status report if this block can't be processed
	FlagDeleteBundleIfCantProcess                      // delete the whole bundle if this block can't be processed
	FlagLastBlock                                      // this is the last block in the bundle
	FlagDiscardIfCantProcess                           // silently discard this block (not the bundle) if it can't be processed
	FlagForwardedWithoutProcessing                     // block was forwarded by a node that didn't understand it
	FlagEIDRefsPresent                                 // block carries EID-reference fields into the dictionary
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// StatusReason is the bundle-status-report reason code attached to
// reception and deletion events (RFC 5050 §6.1.1/§6.1.2 reason codes,
// trimmed to the subset the core actually emits).
type StatusReason uint8

const (
	ReasonNoAdditionalInfo StatusReason = iota
	ReasonLifetimeExpired
	ReasonForwardedUnidirectional
	ReasonTransmissionCancelled
	ReasonDepletedStorage
	ReasonDestEndpointUnintelligible
	ReasonNoRouteToDestination
	ReasonNoTimelyContact
	ReasonBlockUnintelligible
	ReasonSecurityFailed
)

// Block is an extension block: a type code, flags, optional EID references
// into the bundle's dictionary, opaque contents, and the processor that
// knows how to handle it. SecurityLocal holds ciphersuite-specific local
// state for security blocks (see pkg/security); it is nil for all other
// block types.
type Block struct {
	Type      BlockType
	Flags     Flags
	EIDRefs   []eid.EID
	Data      []byte
	Processor Processor

	// SecurityLocal carries per-block ciphersuite state (ciphersuite
	// number, correlator, parameters, security result, security
	// source/destination) for security block types. Opaque to everything
	// outside pkg/security.
	SecurityLocal any

	// OrigOffset is this block's byte offset in the bundle's received
	// wire image, preserved so integrity digests can re-walk the exact
	// bytes that were authenticated.
	OrigOffset uint64
}

// Clone returns a shallow copy of the block suitable for inclusion in a
// link's xmit-blocks list (prepare() typically copies from received-blocks
// this way before generate()/finalize() mutate the copy).
func (b *Block) Clone() *Block {
	cp := *b
	cp.Data = append([]byte(nil), b.Data...)
	cp.EIDRefs = append([]eid.EID(nil), b.EIDRefs...)
	return &cp
}
