// Package database owns connection configuration, the bun connection
// manager, query logging hooks, SQL error classification and the
// schema migrations generated from registered table configurations.
package database
