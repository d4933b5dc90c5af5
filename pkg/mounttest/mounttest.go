package mounttest

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// NodeBuilder allows fluent construction of test nodes.
type NodeBuilder struct {
	tag       shadow.Tag
	component string
	traits    shadow.Traits
	changes   []shadow.Change
	children  []*shadow.Node
}

// NewNode creates a builder for a view node that forms its own stacking
// context, the common case in tests.
func NewNode(tag shadow.Tag, component string) *NodeBuilder {
	return &NodeBuilder{
		tag:       tag,
		component: component,
		traits:    shadow.TraitFormsView | shadow.TraitFormsStackingContext,
	}
}

// Transparent clears the view traits, making the node a pass-through
// wrapper whose children are hoisted into the parent's level.
func (b *NodeBuilder) Transparent() *NodeBuilder {
	b.traits = b.traits.Without(shadow.TraitFormsView | shadow.TraitFormsStackingContext)
	return b
}

// Hidden marks the node and its subtree as excluded from mounting.
func (b *NodeBuilder) Hidden() *NodeBuilder {
	b.traits = b.traits.With(shadow.TraitHidden)
	return b
}

// Traits replaces the node's trait set outright.
func (b *NodeBuilder) Traits(t shadow.Traits) *NodeBuilder {
	b.traits = t
	return b
}

// Props attaches a props map.
func (b *NodeBuilder) Props(p shadow.Props) *NodeBuilder {
	b.changes = append(b.changes, shadow.WithProps(p))
	return b
}

// Frame sets the node's layout frame.
func (b *NodeBuilder) Frame(x, y, width, height float64) *NodeBuilder {
	b.changes = append(b.changes, shadow.WithLayout(shadow.LayoutMetrics{
		Frame: shadow.Rect{
			Origin: shadow.Point{X: x, Y: y},
			Size:   shadow.Size{Width: width, Height: height},
		},
	}))
	return b
}

// Order sets the node's paint-order hint.
func (b *NodeBuilder) Order(i int) *NodeBuilder {
	b.changes = append(b.changes, shadow.WithOrderIndex(i))
	return b
}

// Children sets the node's child list.
func (b *NodeBuilder) Children(children ...*shadow.Node) *NodeBuilder {
	b.children = children
	return b
}

// Build constructs the node.
func (b *NodeBuilder) Build() *shadow.Node {
	changes := append([]shadow.Change{
		shadow.WithTraits(b.traits),
		shadow.WithChildren(b.children...),
	}, b.changes...)
	return shadow.New(b.tag, b.component, changes...)
}

// View is shorthand for NewNode(tag, component).Children(...).Build().
func View(tag shadow.Tag, component string, children ...*shadow.Node) *shadow.Node {
	return NewNode(tag, component).Children(children...).Build()
}

// Wrapper is shorthand for a transparent pass-through node.
func Wrapper(tag shadow.Tag, component string, children ...*shadow.Node) *shadow.Node {
	return NewNode(tag, component).Transparent().Children(children...).Build()
}

// Harness drives a shadow tree through commits, mirroring every diff
// onto a stub hierarchy and failing the test if the two ever diverge.
type Harness struct {
	t           *testing.T
	tree        *shadow.Tree
	stub        *mount.StubTree
	reparenting bool
	lastRoot    *shadow.Node
}

// NewHarness creates a harness with root as revision 1. Reparenting
// detection is enabled; use SetReparenting to test the fallback mode.
func NewHarness(t *testing.T, root *shadow.Node) *Harness {
	t.Helper()
	return &Harness{
		t:           t,
		tree:        shadow.NewTree(root),
		stub:        mount.StubTreeOf(root),
		reparenting: true,
		lastRoot:    root,
	}
}

// SetReparenting toggles move detection for subsequent commits.
func (h *Harness) SetReparenting(enabled bool) {
	h.reparenting = enabled
}

// Tree returns the underlying shadow tree.
func (h *Harness) Tree() *shadow.Tree {
	return h.tree
}

// Stub returns the mirrored stub hierarchy.
func (h *Harness) Stub() *mount.StubTree {
	return h.stub
}

// Commit applies transform as the next generation, diffs it against the
// previous one, applies the mutations to the stub, and verifies the stub
// now matches the new generation. Returns the mutation list.
func (h *Harness) Commit(transform func(root *shadow.Node) *shadow.Node) []mount.Mutation {
	h.t.Helper()

	if _, err := h.tree.Commit(transform); err != nil {
		h.t.Fatalf("commit failed: %v", err)
	}
	newRoot, _ := h.tree.Root()

	mutations, err := mount.CalculateMutations(h.lastRoot, newRoot, h.reparenting)
	if err != nil {
		h.t.Fatalf("diff failed: %v", err)
	}
	if err := h.stub.Apply(mutations...); err != nil {
		h.t.Fatalf("mutations do not apply: %v\nmutations:\n%s", err, FormatMutations(mutations))
	}
	if want := mount.StubTreeOf(newRoot); !h.stub.Equal(want) {
		h.t.Fatalf("stub diverged from the new generation:\n%s", DumpDiff(want, h.stub))
	}

	h.lastRoot = newRoot
	return mutations
}

// FormatMutations renders a mutation list one per line for failure
// messages.
func FormatMutations(mutations []mount.Mutation) string {
	var b strings.Builder
	for _, m := range mutations {
		b.WriteString("  ")
		b.WriteString(m.String())
		b.WriteString("\n")
	}
	return b.String()
}

// ExpectMutations asserts that the mutation types occur in exactly the
// given order, e.g. ExpectMutations(t, got, "Remove", "Insert").
func ExpectMutations(t *testing.T, mutations []mount.Mutation, types ...string) {
	t.Helper()
	got := make([]string, len(mutations))
	for i, m := range mutations {
		got[i] = m.Type.String()
	}
	if len(got) != len(types) {
		t.Errorf("expected %d mutations %v, got %d:\n%s",
			len(types), types, len(got), FormatMutations(mutations))
		return
	}
	for i := range types {
		if got[i] != types[i] {
			t.Errorf("mutation %d: expected %s, got %s\n%s",
				i, types[i], got[i], FormatMutations(mutations))
			return
		}
	}
}

// ExpectNoMutations asserts an empty mutation list.
func ExpectNoMutations(t *testing.T, mutations []mount.Mutation) {
	t.Helper()
	if len(mutations) != 0 {
		t.Errorf("expected no mutations, got %d:\n%s",
			len(mutations), FormatMutations(mutations))
	}
}

// DumpDiff returns a unified diff of two stub hierarchies.
func DumpDiff(want, got *mount.StubTree) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want.Dump()),
		B:        difflib.SplitLines(got.Dump()),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	if err != nil {
		return "diff failed: " + err.Error()
	}
	return text
}
