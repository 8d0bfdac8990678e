// Package models declares the fleet entities and binds each one to its
// table configuration. Column lists come from the embedded tables.yaml;
// the four mapping hooks per entity are plain Go functions.
package models
