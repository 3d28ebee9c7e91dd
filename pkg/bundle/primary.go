package bundle

import (
	"time"

	"github.com/cuemby/dtnd/pkg/eid"
)

// Priority is the bundle's class of service.
type Priority uint8

const (
	PriorityBulk Priority = iota
	PriorityNormal
	PriorityExpedited
	PriorityReserved
)

// DeliveryOpts is a bitmask of the primary block's delivery-option flags.
type DeliveryOpts uint16

const (
	OptCustodyRequested DeliveryOpts = 1 << iota
	OptReturnReceipt
	OptReceiptOnReceive
	OptReceiptOnForward
	OptReceiptOnDelivery
	OptReceiptOnCustody
	OptSingletonDestination
	OptAppAckRequested
)

func (o DeliveryOpts) Has(f DeliveryOpts) bool { return o&f != 0 }

// epoch is the DTN epoch, 2000-01-01T00:00:00Z, from which creation
// timestamps count seconds.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Timestamp is a bundle creation timestamp: seconds since the DTN epoch
// plus a monotonically increasing sequence number disambiguating bundles
// created within the same second by the same source.
type Timestamp struct {
	Seconds uint64
	Seq     uint64
}

// Now returns the Timestamp for the current wall-clock time; Seq must still
// be assigned by the caller (typically a per-source monotonic counter) to
// disambiguate same-second creations.
func Now() Timestamp {
	return Timestamp{Seconds: uint64(time.Since(epoch).Seconds())}
}

func (t Timestamp) Time() time.Time {
	return epoch.Add(time.Duration(t.Seconds) * time.Second)
}

func (t Timestamp) Less(o Timestamp) bool {
	if t.Seconds != o.Seconds {
		return t.Seconds < o.Seconds
	}
	return t.Seq < o.Seq
}

// PrimaryBlock holds the fields of the Bundle Protocol primary block:
// addressing, class of service, lifetime, and fragmentation info.
type PrimaryBlock struct {
	Destination eid.EID
	Source      eid.EID
	ReplyTo     eid.EID
	Custodian   eid.EID

	Priority Priority
	Flags    DeliveryOpts

	Creation Timestamp
	Lifetime uint64 // seconds

	IsFragment bool
	FragOffset uint64 // only meaningful if IsFragment
	OrigLen    uint64 // original bundle's total payload length
}

// ExpiresAt returns the wall-clock time at which the bundle's lifetime
// elapses.
func (p PrimaryBlock) ExpiresAt() time.Time {
	return p.Creation.Time().Add(time.Duration(p.Lifetime) * time.Second)
}

// IsExpired reports whether the bundle's lifetime has elapsed as of now.
func (p PrimaryBlock) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt())
}
