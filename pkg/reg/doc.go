// Package reg implements the registration table: the flat list of
// application bindings keyed by (regid, endpoint pattern) that the daemon
// consults on every bundle delivery to find a matching consumer.
package reg
