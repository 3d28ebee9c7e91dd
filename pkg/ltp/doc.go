// Package ltp implements LTP-over-UDP (spec §4.6): bundles ride UDP
// datagrams framed as LTP segments, with their own session/reliability
// layer independent of the bundle codec above it. A Sender aggregates
// outbound bundles into sessions and drives checkpoint/retransmit; a
// Receiver reassembles red (reliable) and green (best-effort) data and
// answers with report segments; a single Clock actor serializes every
// timer (inactivity, retransmit, aggregation, RS/CS retransmit) so no two
// goroutines race to cancel-and-refire the same timer key.
package ltp
