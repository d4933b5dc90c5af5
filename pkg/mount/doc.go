// Package mount computes and ships the mutations that keep a native view
// hierarchy in sync with a shadow tree.
//
// The heart of the package is CalculateMutations: given two generations of
// a shadow tree it produces the ordered list of Create/Delete/Insert/
// Remove/Update mutations that transforms the mounted hierarchy from the
// old generation to the new one. The list's order is part of the contract:
// a consumer applies mutations strictly in order and may assume that every
// index is valid against its current child lists at the moment the
// mutation executes.
//
// # Ordering
//
// Within one level of the hierarchy, mutations are emitted in a fixed
// bucket order: subtree teardowns first, then updates, then removes in
// descending index order (so earlier indices stay valid), then deletes,
// creates, subtree buildups, and finally inserts in ascending index order.
//
// # Reparenting
//
// With move detection enabled, a subtree that changed position between
// generations is recognized by tag and its Delete+Create pair collapses
// into an Update (plus the Remove/Insert that actually move it). With it
// disabled the differ falls back to plain delete-and-recreate, which is
// always correct but makes the native side rebuild the moved subtree.
//
// # Consumers
//
// StubTree is an in-process consumer that validates the ordering contract
// and mirrors the resulting hierarchy; Coordinator pulls transactions off
// a shadow.Tree for delivery to real consumers such as the mount-stream
// server.
package mount
