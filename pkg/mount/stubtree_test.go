package mount

import (
	"strings"
	"testing"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

func stageFixture() (*StubTree, *shadow.Node) {
	root := vnode(1, shadow.WithChildren(
		vnode(2),
		vnode(3, shadow.WithChildren(vnode(4))),
	))
	return StubTreeOf(root), root
}

func TestStubTreeMountsGeneration(t *testing.T) {
	stage, root := stageFixture()

	if got := len(stage.Root().Children); got != 2 {
		t.Errorf("Root children = %d, want 2", got)
	}
	if !stage.Equal(StubTreeOf(root)) {
		t.Errorf("Two stages of the same generation are not equal")
	}
}

func TestStubTreeFlattensWrappers(t *testing.T) {
	child := vnode(3, shadow.WithLayout(frame(5, 5, 50, 50)))
	root := vnode(1, shadow.WithChildren(
		wrapper(2, shadow.WithLayout(frame(10, 10, 80, 80)), shadow.WithChildren(child)),
	))

	stage := StubTreeOf(root)
	if got := len(stage.Root().Children); got != 1 {
		t.Fatalf("Root children = %d, want 1: the wrapper must not mount", got)
	}
	mounted := stage.Root().Children[0]
	if mounted.View.Tag != 3 {
		t.Errorf("Mounted tag = %d, want 3", mounted.View.Tag)
	}
	if got := mounted.View.Layout.Frame.Origin; got.X != 15 || got.Y != 15 {
		t.Errorf("Mounted origin = (%g,%g), want the accumulated (15,15)", got.X, got.Y)
	}
}

func TestStubTreeViolations(t *testing.T) {
	ghost := vnode(9).View()

	tests := []struct {
		name     string
		mutation Mutation
		wantErr  string
	}{
		{
			"insert before create",
			InsertMutation(vnode(1).View(), ghost, 0),
			"before its create",
		},
		{
			"create twice",
			CreateMutation(vnode(2).View()),
			"already exists",
		},
		{
			"delete while attached",
			DeleteMutation(vnode(2).View()),
			"still attached",
		},
		{
			"delete unknown",
			DeleteMutation(ghost),
			"unknown tag",
		},
		{
			"remove stale index",
			RemoveMutation(vnode(1).View(), vnode(2).View(), 1),
			"expected tag",
		},
		{
			"remove out of range",
			RemoveMutation(vnode(1).View(), vnode(2).View(), 5),
			"outside",
		},
		{
			"remove from unknown parent",
			RemoveMutation(ghost, vnode(4).View(), 0),
			"unknown parent",
		},
		{
			"insert while attached",
			InsertMutation(vnode(1).View(), vnode(4).View(), 0),
			"attached elsewhere",
		},
		{
			"update unknown",
			UpdateMutation(vnode(1).View(), ghost, ghost, 0),
			"unknown tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, _ := stageFixture()
			err := stage.Apply(tt.mutation)
			if err == nil {
				t.Fatalf("Expected an error, got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestStubTreeDeleteWithChildren(t *testing.T) {
	stage, _ := stageFixture()

	// Detach the subtree, then try to delete its root while the
	// grandchild is still attached to it.
	if err := stage.Apply(RemoveMutation(vnode(1).View(), vnode(3).View(), 1)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	err := stage.Apply(DeleteMutation(vnode(3).View()))
	if err == nil || !strings.Contains(err.Error(), "children") {
		t.Errorf("err = %v, want a children-still-attached violation", err)
	}
}

func TestStubTreeInsertIntoDetachedParent(t *testing.T) {
	stage, _ := stageFixture()

	// Bottom-up assembly: a freshly created parent receives a child
	// before it is attached itself.
	p := vnode(10).View()
	c := vnode(11).View()
	err := stage.Apply(
		CreateMutation(p),
		CreateMutation(c),
		InsertMutation(p, c, 0),
		InsertMutation(vnode(1).View(), p, 2),
	)
	if err != nil {
		t.Fatalf("Bottom-up assembly: %v", err)
	}
	if got := len(stage.Root().Children); got != 3 {
		t.Errorf("Root children = %d, want 3", got)
	}
}

func TestStubTreeErrorNamesMutation(t *testing.T) {
	stage, _ := stageFixture()

	err := stage.Apply(
		UpdateMutation(vnode(1).View(), vnode(2).View(), vnode(2).View(), 0),
		DeleteMutation(vnode(9).View()),
	)
	if err == nil {
		t.Fatal("Expected an error, got none")
	}
	if !strings.Contains(err.Error(), "mutation 1") {
		t.Errorf("err = %q, want it to name mutation 1", err)
	}
}

func TestStubTreeDumpListsDetached(t *testing.T) {
	stage, _ := stageFixture()

	if got := stage.Dump(); strings.Contains(got, "detached:") {
		t.Errorf("Dump of a fully attached tree mentions detached views:\n%s", got)
	}

	if err := stage.Apply(RemoveMutation(vnode(1).View(), vnode(2).View(), 0)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got := stage.Dump()
	if !strings.Contains(got, "detached:") {
		t.Errorf("Dump does not list the detached view:\n%s", got)
	}
}

func TestStubTreeEqualDistinguishesDetached(t *testing.T) {
	_, root := stageFixture()
	a := StubTreeOf(root)
	b := StubTreeOf(root)

	if !a.Equal(b) {
		t.Fatalf("Stages of the same generation are not equal")
	}

	if err := a.Apply(
		RemoveMutation(vnode(1).View(), vnode(2).View(), 0),
	); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// Same registry contents, different hierarchy: not equal.
	if a.Equal(b) {
		t.Errorf("Stages with different attachment are reported equal")
	}
}
