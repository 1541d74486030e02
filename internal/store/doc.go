// Package store defines the metadata store interface the gateway consumes
// and a reference SQLite implementation of it.
//
// # Architecture
//
// The gateway treats the metadata store as an opaque external system (the
// dashboard's own database) and only ever talks to it through the narrow
// Store interface in store.go: resolve an endpoint, look up a subscription,
// count today's requests, CAS-increment a trial counter, and append
// usage/touch records. Store is the entire authorization boundary — every
// read bypasses tenant row filters, so a bug here is a tenant isolation
// bug, not merely a correctness bug.
//
// SQLiteStore implements Store against an embedded SQLite database, seeded
// with the six supported services and their field schemas at construction
// time (see seed.go), the same "register once at New(), read-only
// thereafter" discipline the gateway uses for its other static registries.
// MockStore is an in-memory implementation for dispatcher and adapter tests
// that doesn't touch disk.
//
// # Testing
//
//	s := store.NewMockStore()
//	// or, for integration tests against real SQL:
//	s, err := store.NewSQLiteStore(":memory:")
package store
