package mount

import (
	"errors"
	"sort"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// ErrRootFamilyMismatch is returned when the two roots handed to
// CalculateMutations are not generations of the same tree.
var ErrRootFamilyMismatch = errors.New("mount: old and new roots are not generations of the same tree")

// viewNodePair couples a node with its snapshot at one nesting level. The
// view is not always node.View(): flattening folds the layout origins of
// transparent wrappers into the frame, so the same node can surface with
// different frames depending on where its stacking ancestor sits.
type viewNodePair struct {
	view shadow.View
	node *shadow.Node
}

// sliceChildPairs returns the mount-visible children of node, one pair per
// descendant that surfaces at node's level. Transparent wrappers are
// flattened: their children are spliced into this level with the wrapper's
// layout origin folded into each frame. A node that forms a view without
// forming a stacking context hosts its descendants at its ancestor's
// level, so slicing it yields nothing.
func sliceChildPairs(node *shadow.Node) []viewNodePair {
	traits := node.Traits()
	if !traits.Has(shadow.TraitFormsStackingContext) && traits.Has(shadow.TraitFormsView) {
		return nil
	}
	var pairs []viewNodePair
	appendChildPairs(&pairs, shadow.Point{}, node)
	return pairs
}

func appendChildPairs(pairs *[]viewNodePair, offset shadow.Point, node *shadow.Node) {
	for _, child := range node.Children() {
		traits := child.Traits()
		if traits.Has(shadow.TraitHidden) {
			continue
		}

		view := child.View()
		origin := offset
		if view.Layout != shadow.EmptyLayoutMetrics {
			origin = origin.Add(view.Layout.Frame.Origin)
			view.Layout.Frame.Origin = view.Layout.Frame.Origin.Add(offset)
		}

		if traits.Has(shadow.TraitFormsStackingContext) {
			*pairs = append(*pairs, viewNodePair{view: view, node: child})
			continue
		}
		if traits.Has(shadow.TraitFormsView) {
			*pairs = append(*pairs, viewNodePair{view: view, node: child})
		}
		appendChildPairs(pairs, origin, child)
	}
}

// reorderIfNeeded stably sorts pairs by their order hint. Trees that don't
// use hints (all zero) keep natural order without paying for a sort.
func reorderIfNeeded(pairs []viewNodePair) {
	needed := false
	for _, p := range pairs {
		if p.node.OrderIndex() != 0 {
			needed = true
			break
		}
	}
	if !needed {
		return
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].node.OrderIndex() < pairs[j].node.OrderIndex()
	})
}

// CalculateMutations diffs two generations of a shadow tree into the
// ordered mutation list that transforms a hierarchy mounted from oldRoot
// into one matching newRoot. Both roots must be generations of the same
// tree; otherwise ErrRootFamilyMismatch is returned and no mutations are
// produced.
//
// enableReparenting turns on move detection: a subtree that changed
// position between the generations keeps its native views and surfaces as
// Remove+Insert+Update instead of a full Delete+Create rebuild.
func CalculateMutations(oldRoot, newRoot *shadow.Node, enableReparenting bool) ([]Mutation, error) {
	if !shadow.SameFamily(oldRoot, newRoot) {
		return nil, ErrRootFamilyMismatch
	}

	mutations := make([]Mutation, 0, 256)
	tracker := newReparentingTracker(enableReparenting)

	oldRootView := oldRoot.View()
	newRootView := newRoot.View()
	if !oldRootView.Equal(newRootView) {
		mutations = append(mutations, UpdateMutation(shadow.View{}, oldRootView, newRootView, -1))
	}

	diffLevel(&mutations, tracker, oldRootView, sliceChildPairs(oldRoot), sliceChildPairs(newRoot))

	return tracker.prune(mutations), nil
}

// diffLevel reconciles the mount-visible child lists of one parent and
// recurses into matched subtrees. Mutations are collected into per-kind
// buckets and flushed into out in the one order a consumer can apply
// without ever seeing an invalid index: teardown recursions, updates,
// removes from the highest index down, deletes, creates, buildup
// recursions, inserts from the lowest index up.
func diffLevel(out *[]Mutation, tracker *reparentingTracker, parent shadow.View, oldChildPairs, newChildPairs []viewNodePair) {
	if len(oldChildPairs) == 0 && len(newChildPairs) == 0 {
		return
	}

	reorderIfNeeded(oldChildPairs)
	reorderIfNeeded(newChildPairs)

	var (
		createMutations      []Mutation
		deleteMutations      []Mutation
		insertMutations      []Mutation
		removeMutations      []Mutation
		updateMutations      []Mutation
		downwardMutations    []Mutation
		destructiveMutations []Mutation
	)

	// Stage one: walk the common prefix while tags line up, updating in
	// place and recursing.
	index := 0
	for ; index < len(oldChildPairs) && index < len(newChildPairs); index++ {
		oldChildPair := oldChildPairs[index]
		newChildPair := newChildPairs[index]

		if oldChildPair.view.Tag != newChildPair.view.Tag {
			// Totally different nodes; updating is impossible.
			break
		}

		if !oldChildPair.view.Equal(newChildPair.view) {
			updateMutations = append(updateMutations,
				UpdateMutation(parent, oldChildPair.view, newChildPair.view, index))
		}

		recurse(&downwardMutations, &destructiveMutations, tracker, oldChildPair, newChildPair)
	}

	prefixEnd := index

	switch {
	case index == len(newChildPairs):
		// New list exhausted: every remaining old child is a candidate
		// remove+delete, then its whole subtree is torn down.
		for ; index < len(oldChildPairs); index++ {
			oldChildPair := oldChildPairs[index]

			remove, del, substitute := tracker.shouldRemoveDeleteUpdate(parent.Tag, oldChildPair.node, index)
			if del {
				deleteMutations = append(deleteMutations, DeleteMutation(oldChildPair.view))
			}
			if remove {
				removeMutations = append(removeMutations,
					RemoveMutation(parent, oldChildPair.view, index))
			}
			if substitute != nil {
				if view := substitute.View(); !view.Equal(oldChildPair.view) {
					updateMutations = append(updateMutations,
						UpdateMutation(parent, oldChildPair.view, view, -1))
				}
			}

			diffLevel(&destructiveMutations, tracker, oldChildPair.view,
				sliceChildPairs(oldChildPair.node), nil)
		}

	case index == len(oldChildPairs):
		// Old list exhausted: the rest is create+insert, building each new
		// subtree on the way down.
		for ; index < len(newChildPairs); index++ {
			newChildPair := newChildPairs[index]

			insert, create, substitute := tracker.shouldCreateInsertUpdate(parent.Tag, newChildPair.node, index)
			if insert {
				insertMutations = append(insertMutations,
					InsertMutation(parent, newChildPair.view, index))
			}
			if create {
				createMutations = append(createMutations, CreateMutation(newChildPair.view))
			}
			if substitute != nil {
				if view := substitute.View(); !view.Equal(newChildPair.view) {
					updateMutations = append(updateMutations,
						UpdateMutation(parent, view, newChildPair.view, -1))
				}
			}

			diffLevel(&downwardMutations, tracker, newChildPair.view,
				nil, sliceChildPairs(newChildPair.node))
		}

	default:
		// Both lists have remainders: full positional reconciliation.
		// newRemainingPairs holds the new children not yet matched;
		// newInsertedPairs holds provisional inserts whose Create (or
		// cancelling Remove) is still unsettled.
		var newRemainingPairs, newInsertedPairs tinyMap[viewNodePair]
		for ; index < len(newChildPairs); index++ {
			newRemainingPairs.insert(newChildPairs[index].view.Tag, newChildPairs[index])
		}

		oldIndex, newIndex := prefixEnd, prefixEnd
		for newIndex < len(newChildPairs) || oldIndex < len(oldChildPairs) {
			haveNewPair := newIndex < len(newChildPairs)
			haveOldPair := oldIndex < len(oldChildPairs)

			if haveNewPair && haveOldPair {
				oldChildPair := oldChildPairs[oldIndex]
				newChildPair := newChildPairs[newIndex]

				if oldChildPair.view.Tag == newChildPair.view.Tag {
					// Cursors realigned on the same tag.
					if !oldChildPair.view.Equal(newChildPair.view) {
						updateMutations = append(updateMutations,
							UpdateMutation(parent, oldChildPair.view, newChildPair.view, -1))
					}

					if i := newRemainingPairs.find(oldChildPair.view.Tag); i >= 0 {
						newRemainingPairs.erase(i)
					}

					recurse(&downwardMutations, &destructiveMutations, tracker, oldChildPair, newChildPair)

					newIndex++
					oldIndex++
					continue
				}
			}

			if haveOldPair {
				oldChildPair := oldChildPairs[oldIndex]
				oldTag := oldChildPair.view.Tag

				if i := newInsertedPairs.find(oldTag); i >= 0 {
					// The tag was already provisionally inserted further
					// ahead: a resolved reorder. Only the old position has
					// to go; the insert stands.
					newChildPair := newInsertedPairs.at(i)

					removeMutations = append(removeMutations,
						RemoveMutation(parent, oldChildPair.view, oldIndex))
					if !oldChildPair.view.Equal(newChildPair.view) {
						updateMutations = append(updateMutations,
							UpdateMutation(parent, oldChildPair.view, newChildPair.view, -1))
					}

					recurse(&downwardMutations, &destructiveMutations, tracker, oldChildPair, newChildPair)

					newInsertedPairs.erase(i)
					oldIndex++
					continue
				}

				if newRemainingPairs.find(oldTag) < 0 {
					// Not in the new list at all: genuine remove+delete.
					// The Remove always executes regardless of the tracker;
					// the view is leaving this parent no matter where its
					// subtree reappears, so parent and index don't matter
					// to the move bookkeeping either.
					_, del, substitute := tracker.shouldRemoveDeleteUpdate(-1, oldChildPair.node, -1)

					removeMutations = append(removeMutations,
						RemoveMutation(parent, oldChildPair.view, oldIndex))
					if del {
						deleteMutations = append(deleteMutations, DeleteMutation(oldChildPair.view))
					}
					if substitute != nil {
						if view := substitute.View(); !view.Equal(oldChildPair.view) {
							updateMutations = append(updateMutations,
								UpdateMutation(parent, oldChildPair.view, view, -1))
						}
					}

					diffLevel(&destructiveMutations, tracker, oldChildPair.view,
						sliceChildPairs(oldChildPair.node), nil)

					oldIndex++
					continue
				}
			}

			// The new cursor's tag can't be resolved against the old list
			// yet: provisional insert. Whether it also needs a Create is
			// settled after the walk.
			newChildPair := newChildPairs[newIndex]
			tracker.markInserted(parent.Tag, newChildPair.node, newIndex)
			insertMutations = append(insertMutations,
				InsertMutation(parent, newChildPair.view, newIndex))
			newInsertedPairs.insert(newChildPair.view.Tag, newChildPair)
			newIndex++
		}

		// Whatever is still provisionally inserted never matched an old
		// child: create it, or update it if the tracker found the old
		// subtree elsewhere.
		for i := newInsertedPairs.begin(); i < newInsertedPairs.size(); i++ {
			if newInsertedPairs.keyAt(i) == 0 {
				continue
			}
			newChildPair := newInsertedPairs.at(i)

			create, substitute := tracker.shouldCreateUpdate(newChildPair.node)
			if create {
				createMutations = append(createMutations, CreateMutation(newChildPair.view))
			}
			if substitute != nil {
				if view := substitute.View(); !view.Equal(newChildPair.view) {
					updateMutations = append(updateMutations,
						UpdateMutation(parent, view, newChildPair.view, -1))
				}
			}

			diffLevel(&downwardMutations, tracker, newChildPair.view,
				nil, sliceChildPairs(newChildPair.node))
		}
	}

	// Flush buckets in application order. Removes run from the highest
	// index down and inserts from the lowest up so that every index is
	// valid at the moment its mutation applies.
	*out = append(*out, destructiveMutations...)
	*out = append(*out, updateMutations...)
	for i := len(removeMutations) - 1; i >= 0; i-- {
		*out = append(*out, removeMutations[i])
	}
	*out = append(*out, deleteMutations...)
	*out = append(*out, createMutations...)
	*out = append(*out, downwardMutations...)
	*out = append(*out, insertMutations...)
}

// recurse diffs the sliced subtrees of a matched pair. An emptied new
// subtree goes to the destructive bucket, which flushes before the
// parent's own mutations; a live one goes to the downward bucket, which
// flushes after them.
func recurse(downward, destructive *[]Mutation, tracker *reparentingTracker, oldChildPair, newChildPair viewNodePair) {
	oldGrandChildPairs := sliceChildPairs(oldChildPair.node)
	newGrandChildPairs := sliceChildPairs(newChildPair.node)

	target := destructive
	if len(newGrandChildPairs) > 0 {
		target = downward
	}
	diffLevel(target, tracker, oldChildPair.view, oldGrandChildPairs, newGrandChildPairs)
}
