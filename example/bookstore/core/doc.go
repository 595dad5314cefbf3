// Package core holds the pure domain logic of the bookstore example: the
// book aggregate, its commands and its events. No I/O, no infrastructure
// imports.
package core
