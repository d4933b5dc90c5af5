package shadow

import "fmt"

// Family identifies one logical element across generations. Every clone of
// a node shares its family, so two nodes describe "the same element" - and
// are allowed to reconcile against each other - exactly when their family
// pointers are equal.
type Family struct {
	tag       Tag
	component string
	emitter   *EventEmitter
}

// NewFamily creates the family for a new logical element.
func NewFamily(tag Tag, component string) *Family {
	if tag == 0 {
		panic("shadow: tag 0 is reserved")
	}
	return &Family{
		tag:       tag,
		component: component,
		emitter:   NewEventEmitter(tag),
	}
}

// Tag returns the element's tag.
func (f *Family) Tag() Tag { return f.tag }

// Component returns the element's component name.
func (f *Family) Component() string { return f.component }

// EventEmitter returns the emitter shared by all generations of the element.
func (f *Family) EventEmitter() *EventEmitter { return f.emitter }

// Node is one immutable shadow-tree node. Nodes are never modified after
// construction: the render stage produces the next generation of an element
// by calling Clone, which shares the family, and rebuilds only the path
// from the changed node up to the root. Untouched subtrees are shared
// between generations by pointer, which is what makes diffing cheap.
type Node struct {
	family     *Family
	traits     Traits
	props      Props
	layout     LayoutMetrics
	orderIndex int
	children   []*Node
}

// Change adjusts one field of a node under construction. Changes are
// applied by New and Clone before the node is published; nothing may hold a
// *Node that is still being changed.
type Change func(*Node)

// WithTraits sets the node's trait set.
func WithTraits(t Traits) Change {
	return func(n *Node) { n.traits = t }
}

// WithProps attaches a props map. The map is retained as-is and must not
// be mutated afterwards.
func WithProps(p Props) Change {
	return func(n *Node) { n.props = p }
}

// WithLayout sets the node's layout metrics.
func WithLayout(l LayoutMetrics) Change {
	return func(n *Node) { n.layout = l }
}

// WithOrderIndex sets the node's paint-order hint. Siblings with nonzero
// hints are stably reordered by hint before diffing.
func WithOrderIndex(i int) Change {
	return func(n *Node) { n.orderIndex = i }
}

// WithChildren sets the node's ordered child list. The slice is retained
// as-is and must not be mutated afterwards.
func WithChildren(children ...*Node) Change {
	return func(n *Node) { n.children = children }
}

// New constructs the first generation of a new logical element. It creates
// a fresh family, so the result never reconciles against existing nodes.
// Panics if tag is 0.
func New(tag Tag, component string, changes ...Change) *Node {
	n := &Node{
		family: NewFamily(tag, component),
		layout: EmptyLayoutMetrics,
	}
	for _, change := range changes {
		change(n)
	}
	return n
}

// Clone returns the next generation of n: a copy sharing n's family with
// the given changes applied. Fields not named by a change keep n's values,
// including the child list.
func (n *Node) Clone(changes ...Change) *Node {
	next := *n
	for _, change := range changes {
		change(&next)
	}
	return &next
}

// Tag returns the node's tag.
func (n *Node) Tag() Tag { return n.family.tag }

// Component returns the node's component name.
func (n *Node) Component() string { return n.family.component }

// Family returns the node's family.
func (n *Node) Family() *Family { return n.family }

// Traits returns the node's trait set.
func (n *Node) Traits() Traits { return n.traits }

// Props returns the node's props map. Callers must not mutate it.
func (n *Node) Props() Props { return n.props }

// Layout returns the node's layout metrics.
func (n *Node) Layout() LayoutMetrics { return n.layout }

// OrderIndex returns the node's paint-order hint.
func (n *Node) OrderIndex() int { return n.orderIndex }

// Children returns the node's ordered child list. The slice is shared
// across generations; callers must not mutate it.
func (n *Node) Children() []*Node { return n.children }

// String returns a short debug form, e.g. "<Label #12>".
func (n *Node) String() string {
	return fmt.Sprintf("<%s #%d>", n.family.component, n.family.tag)
}

// SameFamily reports whether a and b are generations of the same logical
// element.
func SameFamily(a, b *Node) bool {
	return a != nil && b != nil && a.family == b.family
}

// Find returns the node with the given tag in the tree rooted at root, or
// nil if no such node exists.
func Find(root *Node, tag Tag) *Node {
	if root == nil {
		return nil
	}
	if root.Tag() == tag {
		return root
	}
	for _, child := range root.children {
		if found := Find(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// CloneTreeWith returns a new generation of the tree rooted at root in
// which the node carrying tag is replaced by mutate's result. Every
// ancestor of that node is cloned with an updated child list; all other
// subtrees are shared with root. Returns nil if tag is not in the tree.
//
// mutate receives the current generation of the target node and must
// return its replacement (a clone, so the family is preserved).
func CloneTreeWith(root *Node, tag Tag, mutate func(*Node) *Node) *Node {
	if root == nil {
		return nil
	}
	if root.Tag() == tag {
		return mutate(root)
	}
	for i, child := range root.children {
		replaced := CloneTreeWith(child, tag, mutate)
		if replaced == nil {
			continue
		}
		next := make([]*Node, len(root.children))
		copy(next, root.children)
		next[i] = replaced
		return root.Clone(WithChildren(next...))
	}
	return nil
}
