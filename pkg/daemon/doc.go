// Package daemon implements the Bundle Daemon (spec §4.1): the single
// goroutine that drains the events.Queue and turns each Event into state
// changes — delivering to a local registration, asking a Router for
// forwarding actions, driving a Link's outbound xmit-block pipeline, and
// bumping the prometheus counters in pkg/metrics. It is intentionally
// single-writer: every mutation of shared daemon state (registrations,
// router, link queues) happens from this one loop or through the
// already-synchronized types those packages expose.
package daemon
