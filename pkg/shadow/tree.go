package shadow

import (
	"errors"
	"sync"
)

// Tree commit errors.
var (
	// ErrCommitCancelled is returned when a commit transform returns nil to
	// abandon its commit.
	ErrCommitCancelled = errors.New("shadow: commit cancelled by transform")

	// ErrRootFamilyChanged is returned when a commit transform returns a
	// root that is not a generation of the current root.
	ErrRootFamilyChanged = errors.New("shadow: commit changed the root family")
)

// Tree holds the committed generations of one shadow tree. Commits are
// serialized: each transform sees the latest root and produces the next
// one, so revisions form a single total order. The current root is
// immutable and may be read, diffed, and shipped concurrently with further
// commits.
type Tree struct {
	mu       sync.Mutex
	root     *Node
	revision uint64
}

// NewTree creates a tree with root as revision 1. Panics if root is nil.
func NewTree(root *Node) *Tree {
	if root == nil {
		panic("shadow: nil tree root")
	}
	return &Tree{root: root, revision: 1}
}

// Root returns the current committed root and its revision.
func (t *Tree) Root() (*Node, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root, t.revision
}

// Commit runs transform against the current root and installs its result
// as the next revision. The transform must return a generation of the same
// root element (usually built with Clone or CloneTreeWith); returning nil
// cancels the commit. Returns the new revision.
func (t *Tree) Commit(transform func(root *Node) *Node) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := transform(t.root)
	if next == nil {
		return t.revision, ErrCommitCancelled
	}
	if !SameFamily(t.root, next) {
		return t.revision, ErrRootFamilyChanged
	}

	t.root = next
	t.revision++
	return t.revision, nil
}
