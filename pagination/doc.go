// Package pagination tracks the current page of a table view and
// announces page changes to subscribers.
package pagination
