package mount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// StubView is one mounted view in a StubTree.
type StubView struct {
	View     shadow.View
	Children []*StubView
}

// StubTree is an in-process mount stage. It applies mutation lists exactly
// the way a native consumer would - strictly in order, trusting every
// index against its current child lists - and fails loudly when a list
// violates the contract: an Insert before its Create, an Insert of a view
// still attached elsewhere, a Delete while the view is attached or still
// has children, an index that is stale at the moment it applies.
//
// Subtrees are assembled bottom up: an Insert only needs its parent to
// exist, not to be attached yet.
//
// Tests seed a StubTree from the old generation, apply a diff, and compare
// against a StubTree seeded from the new generation.
type StubTree struct {
	root *StubView

	// registry holds every view that currently exists, attached or not.
	registry map[shadow.Tag]*StubView

	// attachedTo maps a view's tag to the parent it is attached under.
	attachedTo map[shadow.Tag]*StubView
}

// NewStubTree creates a stub hierarchy holding only the root view.
func NewStubTree(root shadow.View) *StubTree {
	rootView := &StubView{View: root}
	return &StubTree{
		root:       rootView,
		registry:   map[shadow.Tag]*StubView{root.Tag: rootView},
		attachedTo: make(map[shadow.Tag]*StubView),
	}
}

// StubTreeOf mounts an entire shadow tree generation: the stub hierarchy
// a consumer would hold after applying a from-scratch diff of root.
func StubTreeOf(root *shadow.Node) *StubTree {
	t := NewStubTree(root.View())
	t.mountChildren(t.root, root)
	return t
}

func (t *StubTree) mountChildren(parent *StubView, node *shadow.Node) {
	for _, pair := range sliceChildPairs(node) {
		child := &StubView{View: pair.view}
		t.registry[pair.view.Tag] = child
		t.attachedTo[pair.view.Tag] = parent
		parent.Children = append(parent.Children, child)
		t.mountChildren(child, pair.node)
	}
}

// Root returns the root stub view.
func (t *StubTree) Root() *StubView {
	return t.root
}

// Apply executes mutations in order, stopping at the first violation of
// the mount contract.
func (t *StubTree) Apply(mutations ...Mutation) error {
	for i, m := range mutations {
		if err := t.apply(m); err != nil {
			return fmt.Errorf("mount: mutation %d (%s): %w", i, m, err)
		}
	}
	return nil
}

func (t *StubTree) apply(m Mutation) error {
	switch m.Type {
	case MutationCreate:
		tag := m.NewChildView.Tag
		if _, exists := t.registry[tag]; exists {
			return fmt.Errorf("create for tag %d that already exists", tag)
		}
		t.registry[tag] = &StubView{View: m.NewChildView}

	case MutationDelete:
		tag := m.OldChildView.Tag
		view, exists := t.registry[tag]
		if !exists {
			return fmt.Errorf("delete for unknown tag %d", tag)
		}
		if t.attachedTo[tag] != nil {
			return fmt.Errorf("delete for tag %d while still attached", tag)
		}
		if len(view.Children) != 0 {
			return fmt.Errorf("delete for tag %d with %d children still attached", tag, len(view.Children))
		}
		delete(t.registry, tag)

	case MutationInsert:
		tag := m.NewChildView.Tag
		child, exists := t.registry[tag]
		if !exists {
			return fmt.Errorf("insert of tag %d before its create", tag)
		}
		if t.attachedTo[tag] != nil {
			return fmt.Errorf("insert of tag %d while still attached elsewhere", tag)
		}
		parent, exists := t.registry[m.ParentView.Tag]
		if !exists {
			return fmt.Errorf("insert into unknown parent tag %d", m.ParentView.Tag)
		}
		if m.Index < 0 || m.Index > len(parent.Children) {
			return fmt.Errorf("insert index %d outside 0..%d", m.Index, len(parent.Children))
		}
		child.View = m.NewChildView
		parent.Children = append(parent.Children, nil)
		copy(parent.Children[m.Index+1:], parent.Children[m.Index:])
		parent.Children[m.Index] = child
		t.attachedTo[tag] = parent

	case MutationRemove:
		tag := m.OldChildView.Tag
		parent, exists := t.registry[m.ParentView.Tag]
		if !exists {
			return fmt.Errorf("remove from unknown parent tag %d", m.ParentView.Tag)
		}
		if m.Index < 0 || m.Index >= len(parent.Children) {
			return fmt.Errorf("remove index %d outside 0..%d", m.Index, len(parent.Children)-1)
		}
		if got := parent.Children[m.Index].View.Tag; got != tag {
			return fmt.Errorf("remove at index %d expected tag %d, found %d", m.Index, tag, got)
		}
		parent.Children = append(parent.Children[:m.Index], parent.Children[m.Index+1:]...)
		delete(t.attachedTo, tag)

	case MutationUpdate:
		tag := m.NewChildView.Tag
		view, exists := t.registry[tag]
		if !exists {
			return fmt.Errorf("update for unknown tag %d", tag)
		}
		view.View = m.NewChildView

	default:
		return fmt.Errorf("unknown mutation type %d", m.Type)
	}
	return nil
}

// Equal reports whether both trees mount the same hierarchy with equal
// views, and hold the same set of detached-but-alive views.
func (t *StubTree) Equal(o *StubTree) bool {
	if len(t.registry) != len(o.registry) {
		return false
	}
	for tag := range t.registry {
		if _, ok := o.registry[tag]; !ok {
			return false
		}
	}
	return stubViewsEqual(t.root, o.root)
}

func stubViewsEqual(a, b *StubView) bool {
	if !a.View.Equal(b.View) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !stubViewsEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Dump renders the mounted hierarchy as indented lines, one view per line,
// with detached-but-alive views listed at the end. Line-oriented so test
// failures can show a readable diff.
func (t *StubTree) Dump() string {
	var b strings.Builder
	dumpStubView(&b, t.root, 0)

	var detached []shadow.Tag
	for tag := range t.registry {
		if t.attachedTo[tag] == nil && t.registry[tag] != t.root {
			detached = append(detached, tag)
		}
	}
	if len(detached) > 0 {
		sort.Slice(detached, func(i, j int) bool { return detached[i] < detached[j] })
		b.WriteString("detached:\n")
		for _, tag := range detached {
			fmt.Fprintf(&b, "  %s\n", t.registry[tag].View)
		}
	}
	return b.String()
}

func dumpStubView(b *strings.Builder, view *StubView, depth int) {
	fmt.Fprintf(b, "%s%s\n", strings.Repeat("  ", depth), view.View)
	for _, child := range view.Children {
		dumpStubView(b, child, depth+1)
	}
}
