// Package store provides the three durable key-value maps the core needs —
// BundleStore, RegistrationStore and PendingAcsStore — each a thin bbolt
// bucket wrapper offering add/del/update/get/iterate (spec §4.7). At
// startup the daemon repopulates its in-memory tables from these stores;
// reloaded bundles are passed through every block processor's
// ReloadPostProcess so derived fields reconstruct.
package store
