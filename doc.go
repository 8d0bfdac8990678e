// Package fleetbook wires the table layer together: it loads configuration,
// opens and migrates the database, builds the retry pipelines and hands out
// repositories, pagination managers and services for the fleet tables.
package fleetbook
