// Package storage defines the key-value port the session store persists
// through. Implementations model the browser's string-keyed storage: a
// process-local memory store for a single client, and a redis-backed store
// for rendering gateways that hold the session server-side.
package storage

// KeyValue is a string-keyed, string-valued store shared across all
// components of one client.
//
// Watch registers a callback for mutations made through *other* handles of
// the same underlying store, mirroring cross-tab storage-change
// notifications: a handle never observes its own writes. The returned
// cancel function is idempotent and must be called before the watching
// component is torn down.
type KeyValue interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Watch(onChange func(key string)) (cancel func())
}
