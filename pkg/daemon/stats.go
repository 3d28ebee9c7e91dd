package daemon

import "sync/atomic"

// Stats are the daemon-wide bundle counters spec §4.1 calls out
// (received/delivered/expired/dropped); prometheus.Collector duplicates of
// the same numbers live in pkg/metrics, but these are cheap to read
// synchronously for admin introspection without scraping.
type Stats struct {
	Received  uint64
	Delivered uint64
	Forwarded uint64
	Expired   uint64
	Dropped   uint64
}

func (s *Stats) incReceived()  { atomic.AddUint64(&s.Received, 1) }
func (s *Stats) incDelivered() { atomic.AddUint64(&s.Delivered, 1) }
func (s *Stats) incForwarded() { atomic.AddUint64(&s.Forwarded, 1) }
func (s *Stats) incExpired()   { atomic.AddUint64(&s.Expired, 1) }
func (s *Stats) incDropped()   { atomic.AddUint64(&s.Dropped, 1) }

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Received:  atomic.LoadUint64(&s.Received),
		Delivered: atomic.LoadUint64(&s.Delivered),
		Forwarded: atomic.LoadUint64(&s.Forwarded),
		Expired:   atomic.LoadUint64(&s.Expired),
		Dropped:   atomic.LoadUint64(&s.Dropped),
	}
}
