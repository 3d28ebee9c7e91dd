// Package bundle implements the DTN Bundle Protocol v6 data model: the
// Bundle itself (primary block fields, payload, extension block lists),
// the Block and BlockProcessor framework, and the wire codec that produces
// and consumes a bundle's on-the-wire byte image. See spec §3 and §4.2.
package bundle
