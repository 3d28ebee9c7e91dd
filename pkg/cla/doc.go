// Package cla implements convergence layer adapters satisfying
// link.CLA. TCPCLA is a minimal bundle-at-a-time transport: each bundle's
// wire image is framed on the stream with an SDNV length prefix (the
// codec's total_length), one listener accepts inbound connections and one
// persistent outbound connection per link carries sends. It exists
// alongside pkg/ltp as the second, simpler reference CLA — LTP earns its
// segment/session machinery over lossy or high-latency links; a TCP
// stream does not need any of that.
package cla
