// Package events is the Bundle Daemon's event queue (spec §4.1): every
// occurrence the daemon must react to — a received bundle, a link coming
// up, a registration expiring — is wrapped in an Event and pushed onto a
// single unbounded FIFO that the daemon's one consuming goroutine drains in
// order. Unlike a pub/sub broker, there is exactly one reader: §4.1 is
// explicitly single-writer, so fan-out and per-subscriber buffering would
// only add places for ordering to slip.
package events
