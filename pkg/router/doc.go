// Package router implements the router strategy interface (spec §4.5): a
// pluggable object that turns daemon events into forwarding actions. Router
// is an interchangeable strategy — this package ships two reference
// implementations, StaticRouter (route table driven) and FloodRouter
// (epidemic, forward to every reachable link but the one a bundle arrived
// on), not One True Router.
package router
