// Package postgres implements the store interfaces on PostgreSQL through
// database/sql with the pgx driver. All implementations accept a store.DBTX
// so the same code runs against a pooled connection or a transaction; the
// task stores additionally stamp update_time from an injected clock on
// every write.
package postgres
