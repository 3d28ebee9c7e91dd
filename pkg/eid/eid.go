package eid

import (
	"fmt"
	"strings"
)

// EID is a DTN endpoint identifier: scheme:ssp.
type EID struct {
	Scheme string
	SSP    string
}

// None is the well-known null endpoint dtn:none.
var None = EID{Scheme: "dtn", SSP: "none"}

// Parse splits a URI-like string into an EID. It does not validate the SSP
// beyond requiring a non-empty scheme and a colon separator, matching the
// source's permissive tuple parsing — scheme-specific structure (ipn's
// node.service, dtn's //authority/demux) is interpreted lazily by Authority
// and Demux.
func Parse(s string) (EID, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return EID{}, fmt.Errorf("eid: %q has no scheme", s)
	}
	return EID{Scheme: s[:idx], SSP: s[idx+1:]}, nil
}

// MustParse is Parse but panics on error; intended for literal EIDs in
// tests and config defaults.
func MustParse(s string) EID {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (e EID) String() string {
	return e.Scheme + ":" + e.SSP
}

// IsNone reports whether e is the null endpoint.
func (e EID) IsNone() bool {
	return e.Scheme == "dtn" && (e.SSP == "none" || e.SSP == "")
}

// Authority returns the node-identifying portion of the EID: the host for
// dtn://host/demux, the node number for ipn:node.service.
func (e EID) Authority() string {
	switch e.Scheme {
	case "dtn":
		rest := strings.TrimPrefix(e.SSP, "//")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[:i]
		}
		return rest
	case "ipn":
		if i := strings.IndexByte(e.SSP, '.'); i >= 0 {
			return e.SSP[:i]
		}
		return e.SSP
	default:
		return e.SSP
	}
}

// Demux returns the application-demultiplexing portion: the path below the
// dtn:// authority, or the service number for ipn.
func (e EID) Demux() string {
	switch e.Scheme {
	case "dtn":
		rest := strings.TrimPrefix(e.SSP, "//")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[i:]
		}
		return ""
	case "ipn":
		if i := strings.IndexByte(e.SSP, '.'); i >= 0 {
			return e.SSP[i+1:]
		}
		return ""
	default:
		return ""
	}
}

// Equal reports exact, non-wildcard equality.
func (e EID) Equal(o EID) bool {
	return e.Scheme == o.Scheme && e.SSP == o.SSP
}

// Match reports whether pattern (which may itself be an EID with '*'
// wildcards in its authority or demux components) admits concrete EID e.
// Matching is scheme-specific: the scheme itself must match exactly (or the
// pattern's scheme be "*"), then the authority and demux segments are
// compared with a single-level wildcard: a literal "*" segment matches any
// value there.
func Match(pattern, e EID) bool {
	if pattern.Scheme != "*" && pattern.Scheme != e.Scheme {
		return false
	}
	if pattern.SSP == "*" {
		return true
	}
	if !segmentMatch(pattern.Authority(), e.Authority()) {
		return false
	}
	return segmentMatch(pattern.Demux(), e.Demux())
}

func segmentMatch(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}

// IsLocal reports whether e shares the authority of localNode, i.e. e
// addresses this node (any demux under it).
func IsLocal(localNode, e EID) bool {
	return localNode.Scheme == e.Scheme && localNode.Authority() == e.Authority()
}
