// Package repository provides the generic table repository built on Bun:
// paged and keyed reads, parameterized inserts, updates and deletes, all run
// through a resilience pipeline and reporting data-access failures as
// sentinel results.
package repository
