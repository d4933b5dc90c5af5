package mount

import (
	"context"
	"testing"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

func TestCoordinatorInitialPull(t *testing.T) {
	root := vnode(1, shadow.WithChildren(vnode(2), vnode(3)))
	tree := shadow.NewTree(root)
	c := NewCoordinator(tree, WithTracerName("coordinator-test"))

	tx, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("Expected a transaction for the initial revision, got nil")
	}
	if tx.BaseRevision != 0 || tx.Revision != 1 {
		t.Errorf("Revisions = %d -> %d, want 0 -> 1", tx.BaseRevision, tx.Revision)
	}
	if tx.Telemetry.Duration() < 0 {
		t.Errorf("Telemetry duration = %v, want non-negative", tx.Telemetry.Duration())
	}

	// The first transaction is a full from-scratch mount.
	stage := NewStubTree(root.View())
	if err := stage.Apply(tx.Mutations...); err != nil {
		t.Fatalf("Applying initial mount: %v", err)
	}
	want := StubTreeOf(root)
	if !stage.Equal(want) {
		t.Fatalf("Initial mount does not match the tree:\n%s", dumpDiff(want, stage))
	}
}

func TestCoordinatorUpToDatePull(t *testing.T) {
	tree := shadow.NewTree(vnode(1))
	c := NewCoordinator(tree)

	if _, err := c.PullTransaction(context.Background()); err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}

	tx, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("Expected nil transaction while up to date, got %d mutations", len(tx.Mutations))
	}
	if got := c.BaseRevision(); got != 1 {
		t.Errorf("BaseRevision = %d, want 1", got)
	}
}

func TestCoordinatorPullAfterCommit(t *testing.T) {
	root := vnode(1, shadow.WithChildren(vnode(2, shadow.WithProps(shadow.Props{"n": 0}))))
	tree := shadow.NewTree(root)
	c := NewCoordinator(tree)

	boot, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	stage := NewStubTree(root.View())
	if err := stage.Apply(boot.Mutations...); err != nil {
		t.Fatalf("Applying initial mount: %v", err)
	}

	if _, err := tree.Commit(func(r *shadow.Node) *shadow.Node {
		return shadow.CloneTreeWith(r, 2, func(n *shadow.Node) *shadow.Node {
			return n.Clone(shadow.WithProps(shadow.Props{"n": 1}))
		})
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	if tx.BaseRevision != 1 || tx.Revision != 2 {
		t.Errorf("Revisions = %d -> %d, want 1 -> 2", tx.BaseRevision, tx.Revision)
	}
	if got, want := kinds(tx.Mutations), "Update"; got != want {
		t.Errorf("Mutation kinds = %q, want %q", got, want)
	}

	if err := stage.Apply(tx.Mutations...); err != nil {
		t.Fatalf("Applying update: %v", err)
	}
	current, _ := tree.Root()
	want := StubTreeOf(current)
	if !stage.Equal(want) {
		t.Fatalf("Stage does not track the tree:\n%s", dumpDiff(want, stage))
	}
}

func TestCoordinatorCoalescesCommits(t *testing.T) {
	root := vnode(1)
	tree := shadow.NewTree(root)
	c := NewCoordinator(tree)

	boot, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	stage := NewStubTree(root.View())
	if err := stage.Apply(boot.Mutations...); err != nil {
		t.Fatalf("Applying initial mount: %v", err)
	}

	// Three commits land before the next pull; the transaction carries
	// the whole distance in one batch.
	for tag := shadow.Tag(2); tag <= 4; tag++ {
		added := vnode(tag)
		if _, err := tree.Commit(func(r *shadow.Node) *shadow.Node {
			children := make([]*shadow.Node, len(r.Children()), len(r.Children())+1)
			copy(children, r.Children())
			return r.Clone(shadow.WithChildren(append(children, added)...))
		}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	tx, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}
	if tx.BaseRevision != 1 || tx.Revision != 4 {
		t.Errorf("Revisions = %d -> %d, want 1 -> 4", tx.BaseRevision, tx.Revision)
	}
	if n := countKind(tx.Mutations, MutationCreate); n != 3 {
		t.Errorf("Expected 3 creates, got %d", n)
	}

	if err := stage.Apply(tx.Mutations...); err != nil {
		t.Fatalf("Applying batch: %v", err)
	}
	current, _ := tree.Root()
	want := StubTreeOf(current)
	if !stage.Equal(want) {
		t.Fatalf("Stage does not track the tree:\n%s", dumpDiff(want, stage))
	}
}

func TestCoordinatorReparentingOption(t *testing.T) {
	build := func() (*shadow.Tree, *Coordinator, *StubTree, error) {
		x := vnode(4)
		root := vnode(1, shadow.WithChildren(
			vnode(2, shadow.WithChildren(x)),
			vnode(3),
		))
		tree := shadow.NewTree(root)
		c := NewCoordinator(tree, WithReparenting(false))
		boot, err := c.PullTransaction(context.Background())
		if err != nil {
			return nil, nil, nil, err
		}
		stage := NewStubTree(root.View())
		if err := stage.Apply(boot.Mutations...); err != nil {
			return nil, nil, nil, err
		}
		return tree, c, stage, nil
	}

	tree, c, stage, err := build()
	if err != nil {
		t.Fatalf("Bootstrapping: %v", err)
	}

	if _, err := tree.Commit(func(r *shadow.Node) *shadow.Node {
		a := shadow.Find(r, 2)
		b := shadow.Find(r, 3)
		x := shadow.Find(r, 4)
		return r.Clone(shadow.WithChildren(
			a.Clone(shadow.WithChildren()),
			b.Clone(shadow.WithChildren(x)),
		))
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, err := c.PullTransaction(context.Background())
	if err != nil {
		t.Fatalf("PullTransaction: %v", err)
	}

	// With reparenting off, the moved subtree is rebuilt.
	if n := countKind(tx.Mutations, MutationDelete); n == 0 {
		t.Errorf("Expected deletes with reparenting disabled, got: %s", kinds(tx.Mutations))
	}
	if n := countKind(tx.Mutations, MutationCreate); n == 0 {
		t.Errorf("Expected creates with reparenting disabled, got: %s", kinds(tx.Mutations))
	}

	if err := stage.Apply(tx.Mutations...); err != nil {
		t.Fatalf("Applying move: %v", err)
	}
	current, _ := tree.Root()
	want := StubTreeOf(current)
	if !stage.Equal(want) {
		t.Fatalf("Stage does not track the tree:\n%s", dumpDiff(want, stage))
	}
}
