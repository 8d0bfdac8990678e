// Package schema describes persisted tables: immutable column descriptors,
// per-entity table configurations carrying the four mapping hooks, and a
// registry keyed by entity type that is frozen once built.
package schema
