// Package stratum provides the public API for the Stratum reconciliation
// engine.
//
// This is the recommended import for most consumers:
//
//	import "github.com/stratum-ui/stratum"
//
// Usage:
//
//	root := shadow.New(1, "Root", ...)
//	tree := stratum.NewTree(root)
//	tree.Commit(func(r *stratum.Node) *stratum.Node { ... })
//	mutations, err := stratum.Diff(oldRoot, newRoot, true)
//
// The subpackages expose the full surface: pkg/shadow for the tree model,
// pkg/mount for the differ and its consumers, pkg/protocol for the wire
// format, pkg/server for the mount stream server, and pkg/journal for
// transaction persistence.
package stratum

import (
	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Version is the library version, set manually at release time.
const Version = "0.1.0"

// =============================================================================
// Shadow tree (re-export from pkg/shadow)
// =============================================================================

// Tag identifies a logical element across tree generations.
type Tag = shadow.Tag

// Traits describes how a node participates in the native view hierarchy.
type Traits = shadow.Traits

// Node is one immutable shadow-tree node.
type Node = shadow.Node

// View is a node's mount-facing snapshot.
type View = shadow.View

// Tree holds the committed generations of one shadow tree.
type Tree = shadow.Tree

// NewNode constructs the first generation of a new logical element.
var NewNode = shadow.New

// NewTree creates a tree with root as revision 1.
var NewTree = shadow.NewTree

// =============================================================================
// Differ (re-export from pkg/mount)
// =============================================================================

// Mutation is one atomic instruction for the mount stage.
type Mutation = mount.Mutation

// MutationType discriminates Create/Delete/Insert/Remove/Update.
type MutationType = mount.MutationType

// Transaction is one published revision step: the mutation list plus
// bookkeeping.
type Transaction = mount.Transaction

// Diff computes the ordered mutation list transforming the hierarchy
// mounted for oldRoot into the one described by newRoot.
var Diff = mount.CalculateMutations
