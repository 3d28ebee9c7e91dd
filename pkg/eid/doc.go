// Package eid implements DTN endpoint identifiers: URIs of the form
// scheme:scheme-specific-part, plus the wildcard pattern matching used by
// registrations and route tables to demux against them.
package eid
