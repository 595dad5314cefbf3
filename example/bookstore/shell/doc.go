// Package shell is the infrastructure layer of the bookstore example: the
// book event codec with its upcaster chain, the transactional stock
// projector and the eventual low-stock notifier.
package shell
