package mount

import (
	"fmt"
	"strings"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// MutationType discriminates the five mutation kinds. The values are
// single bits so sets of types can be tracked as a bitmask.
type MutationType uint8

const (
	// MutationCreate allocates a native view for a newly appearing tag.
	MutationCreate MutationType = 1 << iota
	// MutationDelete destroys the native view of a disappearing tag.
	MutationDelete
	// MutationInsert attaches a view to a parent at an index.
	MutationInsert
	// MutationRemove detaches a view from a parent at an index.
	MutationRemove
	// MutationUpdate applies new observable state to a mounted view.
	MutationUpdate
)

// Has reports whether all bits of o are set.
func (t MutationType) Has(o MutationType) bool {
	return t&o == o
}

// String returns the names of the set bits, "+"-joined.
func (t MutationType) String() string {
	if t == 0 {
		return "None"
	}
	var parts []string
	if t.Has(MutationCreate) {
		parts = append(parts, "Create")
	}
	if t.Has(MutationDelete) {
		parts = append(parts, "Delete")
	}
	if t.Has(MutationInsert) {
		parts = append(parts, "Insert")
	}
	if t.Has(MutationRemove) {
		parts = append(parts, "Remove")
	}
	if t.Has(MutationUpdate) {
		parts = append(parts, "Update")
	}
	return strings.Join(parts, "+")
}

// Mutation is one atomic instruction for the mount stage. Which fields are
// meaningful depends on Type: Create carries only NewChildView, Delete only
// OldChildView, Insert/Remove carry ParentView plus one child and an index,
// Update carries ParentView and both children. Index is -1 where position
// is not meaningful. Use the constructors below rather than literals.
type Mutation struct {
	Type         MutationType
	ParentView   shadow.View
	OldChildView shadow.View
	NewChildView shadow.View
	Index        int
}

// CreateMutation instructs the mount stage to allocate a view for child.
func CreateMutation(child shadow.View) Mutation {
	return Mutation{Type: MutationCreate, NewChildView: child, Index: -1}
}

// DeleteMutation instructs the mount stage to destroy child's view. Every
// Remove referencing the tag precedes the Delete in a well-ordered list.
func DeleteMutation(child shadow.View) Mutation {
	return Mutation{Type: MutationDelete, OldChildView: child, Index: -1}
}

// InsertMutation attaches child under parent at index.
func InsertMutation(parent, child shadow.View, index int) Mutation {
	return Mutation{Type: MutationInsert, ParentView: parent, NewChildView: child, Index: index}
}

// RemoveMutation detaches child from parent at index.
func RemoveMutation(parent, child shadow.View, index int) Mutation {
	return Mutation{Type: MutationRemove, ParentView: parent, OldChildView: child, Index: index}
}

// UpdateMutation replaces oldChild's observable state with newChild's.
func UpdateMutation(parent, oldChild, newChild shadow.View, index int) Mutation {
	return Mutation{Type: MutationUpdate, ParentView: parent, OldChildView: oldChild, NewChildView: newChild, Index: index}
}

// String returns a one-line debug form.
func (m Mutation) String() string {
	switch m.Type {
	case MutationCreate:
		return fmt.Sprintf("Create %s", m.NewChildView)
	case MutationDelete:
		return fmt.Sprintf("Delete %s", m.OldChildView)
	case MutationInsert:
		return fmt.Sprintf("Insert %s into %s at %d", m.NewChildView, m.ParentView, m.Index)
	case MutationRemove:
		return fmt.Sprintf("Remove %s from %s at %d", m.OldChildView, m.ParentView, m.Index)
	case MutationUpdate:
		return fmt.Sprintf("Update %s -> %s in %s", m.OldChildView, m.NewChildView, m.ParentView)
	default:
		return fmt.Sprintf("Unknown mutation %d", m.Type)
	}
}
