// Package store defines the persistence contracts for the model service:
// task stores with row-level exclusive locking and filtered listing, the
// append-only classification result store, and the shared transaction
// helper. Implementations live in internal/platform/postgres.
//
// The locking rules are the heart of the service's concurrency model: a
// task row may only be claimed through GetWithXLock inside a transaction,
// and update_time is refreshed by the store on every write so the stale
// task sweep can trust it.
package store
