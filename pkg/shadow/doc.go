// Package shadow provides the immutable shadow-tree data model for Stratum.
//
// A shadow tree is the server-side description of a native view hierarchy.
// The render stage produces a new generation of the tree for every state
// change; generations share untouched subtrees, so building one costs only
// the path that changed. The mount package diffs consecutive generations
// into ordered mutation lists.
//
// # Core Types
//
// Node is the immutable tree node: a non-zero Tag, a trait set describing
// how the node participates in the native hierarchy, opaque Props, layout
// metrics, and a shared child list. Clone produces the next generation of a
// node; clones share a Family, which is what identifies "the same logical
// element" across generations.
//
// View is a node's mount-facing projection: the cheap, comparable snapshot
// the differ and the mount layer exchange. Two views compare equal exactly
// when no observable field changed.
//
// # Generations
//
// Tree serializes commits: each Commit runs a transform from the current
// root to the next one, enforcing copy-on-write discipline (the transform
// must keep the root family) and bumping the revision. Consumers pull
// (old, new) root pairs and diff them.
package shadow
