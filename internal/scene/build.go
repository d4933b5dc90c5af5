package scene

import (
	"fmt"

	"github.com/stratum-ui/stratum/internal/errors"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Build constructs the scene's initial tree as revision 1.
func (s *Scene) Build() (*shadow.Tree, error) {
	root, err := buildNode(s.Root)
	if err != nil {
		return nil, err
	}
	return shadow.NewTree(root), nil
}

func buildNode(spec *NodeSpec) (*shadow.Node, error) {
	traits, err := parseTraits(spec.Traits)
	if err != nil {
		return nil, err
	}

	children := make([]*shadow.Node, 0, len(spec.Children))
	for _, childSpec := range spec.Children {
		child, err := buildNode(childSpec)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	changes := []shadow.Change{
		shadow.WithTraits(traits),
		shadow.WithChildren(children...),
	}
	if len(spec.Props) > 0 {
		changes = append(changes, shadow.WithProps(shadow.Props(spec.Props)))
	}
	if len(spec.Frame) == 4 {
		changes = append(changes, shadow.WithLayout(layoutFromFrame(spec.Frame)))
	}
	if spec.Order != 0 {
		changes = append(changes, shadow.WithOrderIndex(spec.Order))
	}

	return shadow.New(spec.Tag, spec.Component, changes...), nil
}

func layoutFromFrame(frame []float64) shadow.LayoutMetrics {
	return shadow.LayoutMetrics{Frame: shadow.Rect{
		Origin: shadow.Point{X: frame[0], Y: frame[1]},
		Size:   shadow.Size{Width: frame[2], Height: frame[3]},
	}}
}

// Apply commits one step against the tree and returns the new revision.
func (st *Step) Apply(tree *shadow.Tree) (uint64, error) {
	revision, err := tree.Commit(st.transform)
	if err != nil {
		return revision, errors.New("E143").
			WithDetail(fmt.Sprintf("Step %q (%s) could not be applied", st.Name, st.Kind())).
			Wrap(err)
	}
	return revision, nil
}

// ApplyAll commits every step in order and returns the final revision.
func (s *Scene) ApplyAll(tree *shadow.Tree) (uint64, error) {
	_, revision := tree.Root()
	for i := range s.Steps {
		var err error
		revision, err = s.Steps[i].Apply(tree)
		if err != nil {
			return revision, err
		}
	}
	return revision, nil
}

// transform builds the next generation for the step, or returns nil to
// cancel the commit when the step's target does not exist.
func (st *Step) transform(root *shadow.Node) *shadow.Node {
	switch {
	case st.SetProps != nil:
		return shadow.CloneTreeWith(root, st.SetProps.Tag, func(n *shadow.Node) *shadow.Node {
			return n.Clone(shadow.WithProps(shadow.Props(st.SetProps.Props)))
		})

	case st.SetFrame != nil:
		if len(st.SetFrame.Frame) != 4 {
			return nil
		}
		return shadow.CloneTreeWith(root, st.SetFrame.Tag, func(n *shadow.Node) *shadow.Node {
			return n.Clone(shadow.WithLayout(layoutFromFrame(st.SetFrame.Frame)))
		})

	case st.Insert != nil:
		if specInTree(root, st.Insert.Node) {
			return nil
		}
		node, err := buildNode(st.Insert.Node)
		if err != nil {
			return nil
		}
		return insertNode(root, st.Insert.Parent, st.Insert.Index, node)

	case st.Remove != nil:
		return removeNode(root, st.Remove.Tag)

	case st.Move != nil:
		node := shadow.Find(root, st.Move.Tag)
		if node == nil {
			return nil
		}
		removed := removeNode(root, st.Move.Tag)
		if removed == nil {
			return nil
		}
		return insertNode(removed, st.Move.Parent, st.Move.Index, node)
	}
	return nil
}

// specInTree reports whether any tag of spec's subtree is already taken.
func specInTree(root *shadow.Node, spec *NodeSpec) bool {
	if shadow.Find(root, spec.Tag) != nil {
		return true
	}
	for _, child := range spec.Children {
		if specInTree(root, child) {
			return true
		}
	}
	return false
}

// insertNode returns a new generation with child inserted under the node
// carrying parentTag. An index outside the child list appends. Returns
// nil if parentTag is not in the tree.
func insertNode(root *shadow.Node, parentTag shadow.Tag, index int, child *shadow.Node) *shadow.Node {
	return shadow.CloneTreeWith(root, parentTag, func(parent *shadow.Node) *shadow.Node {
		siblings := parent.Children()
		if index < 0 || index > len(siblings) {
			index = len(siblings)
		}
		next := make([]*shadow.Node, 0, len(siblings)+1)
		next = append(next, siblings[:index]...)
		next = append(next, child)
		next = append(next, siblings[index:]...)
		return parent.Clone(shadow.WithChildren(next...))
	})
}

// removeNode returns a new generation without the subtree rooted at tag.
// Returns nil if tag is not in the tree or names the root itself.
func removeNode(root *shadow.Node, tag shadow.Tag) *shadow.Node {
	if root == nil || root.Tag() == tag {
		return nil
	}
	for i, child := range root.Children() {
		if child.Tag() == tag {
			siblings := root.Children()
			next := make([]*shadow.Node, 0, len(siblings)-1)
			next = append(next, siblings[:i]...)
			next = append(next, siblings[i+1:]...)
			return root.Clone(shadow.WithChildren(next...))
		}
		if replaced := removeNode(child, tag); replaced != nil {
			siblings := root.Children()
			next := make([]*shadow.Node, len(siblings))
			copy(next, siblings)
			next[i] = replaced
			return root.Clone(shadow.WithChildren(next...))
		}
	}
	return nil
}
