package shadow

import "strings"

// Tag identifies a logical element. Tags are assigned by the render stage,
// are unique within a tree, and survive cloning. Tag 0 is reserved as the
// "erased" sentinel in differ bookkeeping and never names a real node.
type Tag int32

// Traits describes how a node participates in the native view hierarchy.
type Traits uint8

const (
	// TraitFormsView marks a node that materializes a native view of its
	// own. Nodes without it are transparent wrappers: invisible to the
	// mount layer, contributing only their layout offset to descendants.
	TraitFormsView Traits = 1 << iota

	// TraitFormsStackingContext marks a node whose children form their own
	// stacking level. Descendants of a non-stacking view node are hoisted
	// into the nearest stacking ancestor's level instead.
	TraitFormsStackingContext

	// TraitHidden excludes a node and its subtree from mounting entirely.
	TraitHidden
)

// Has reports whether all bits of t are set.
func (tr Traits) Has(t Traits) bool {
	return tr&t == t
}

// With returns tr with the bits of t set.
func (tr Traits) With(t Traits) Traits {
	return tr | t
}

// Without returns tr with the bits of t cleared.
func (tr Traits) Without(t Traits) Traits {
	return tr &^ t
}

// String returns a "+"-joined list of the set traits, or "none".
func (tr Traits) String() string {
	if tr == 0 {
		return "none"
	}
	var parts []string
	if tr.Has(TraitFormsView) {
		parts = append(parts, "FormsView")
	}
	if tr.Has(TraitFormsStackingContext) {
		parts = append(parts, "FormsStackingContext")
	}
	if tr.Has(TraitHidden) {
		parts = append(parts, "Hidden")
	}
	return strings.Join(parts, "+")
}
