// Package link implements the contact/link state machine (spec §4.3): a
// Link transitions between UNAVAILABLE, AVAILABLE, OPENING, OPEN, BUSY and
// CLOSED as its CLA opens and closes contacts, with retry backoff on
// reconnect. Each Link owns a queue of bundles waiting to be sent and an
// inflight set of bundles handed to the CLA but not yet acknowledged —
// invariant 4 (spec §8): a bundle is in exactly one of queue, inflight, or
// neither, never both. ContactManager is the node-wide registry daemon and
// router code use to look up a link by name.
package link
