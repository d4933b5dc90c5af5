package mount

import "github.com/stratum-ui/stratum/pkg/shadow"

// opRecord is the per-tag bookkeeping of one diff pass: which mutation
// types have been proposed for the tag, which of them the final prune must
// strip, where the first Remove or Insert happened, and the node
// generations involved.
type opRecord struct {
	existing  MutationType // mutation types proposed so far
	erase     MutationType // proposed types to strip in the final prune
	index     int          // child index of the first Remove or Insert
	parentTag shadow.Tag   // parent of the first Remove or Insert
	oldNode   *shadow.Node
	newNode   *shadow.Node
}

// reparentingTracker tells a plain delete-then-create apart from a move.
// The differ consults it before committing to destructive mutations; when
// both sides of a moved subtree have been sighted, the tracker suppresses
// the Delete and Create, substitutes an Update, and marks already-emitted
// mutations for removal in the final prune pass.
//
// Disabled, every method degenerates to "always create/delete/insert/
// remove". That mode is always correct; it just rebuilds moved subtrees.
type reparentingTracker struct {
	enabled     bool
	outstanding int // pending erase bits not yet consumed by prune
	records     map[shadow.Tag]*opRecord
}

func newReparentingTracker(enabled bool) *reparentingTracker {
	return &reparentingTracker{
		enabled: enabled,
		records: make(map[shadow.Tag]*opRecord),
	}
}

// shouldRemoveDeleteUpdate is consulted before emitting Remove+Delete for
// a node that left its parent's child list. The first sighting of a tag
// records it as a candidate remove+delete and allows both. A later
// sighting means the insert side already saw the tag: the Delete is
// suppressed, the Remove survives unless an Insert at the same parent and
// index cancels it exactly, and the returned substitute (the node's new
// generation) lets the caller emit an Update in place of the pair.
func (t *reparentingTracker) shouldRemoveDeleteUpdate(parentTag shadow.Tag, node *shadow.Node, index int) (remove, del bool, substitute *shadow.Node) {
	if !t.enabled {
		return true, true, nil
	}

	tag := node.Tag()
	rec, ok := t.records[tag]
	if !ok {
		t.records[tag] = &opRecord{
			existing:  MutationRemove | MutationDelete,
			index:     index,
			parentTag: parentTag,
			oldNode:   node,
		}
		return true, true, nil
	}

	if rec.erase != 0 {
		panic("mount: remove side sighted a settled reparenting record")
	}
	remove = !(rec.existing.Has(MutationInsert) && rec.index == index && rec.parentTag == parentTag)
	rec.erase |= rec.existing & MutationCreate
	if !remove {
		rec.erase |= rec.existing & MutationInsert
	}
	if rec.erase != 0 {
		t.outstanding++
	}
	return remove, false, rec.newNode
}

// shouldCreateInsertUpdate is the symmetric counterpart for a node that
// appeared in a parent's child list: first sighting records a candidate
// create+insert; a later sighting suppresses the Create, cancels a prior
// Remove at the same parent and index, and substitutes an Update against
// the returned old generation.
func (t *reparentingTracker) shouldCreateInsertUpdate(parentTag shadow.Tag, node *shadow.Node, index int) (insert, create bool, substitute *shadow.Node) {
	if !t.enabled {
		return true, true, nil
	}

	tag := node.Tag()
	rec, ok := t.records[tag]
	if !ok {
		t.records[tag] = &opRecord{
			existing:  MutationCreate | MutationInsert,
			index:     index,
			parentTag: -1,
			newNode:   node,
		}
		return true, true, nil
	}

	if rec.erase != 0 {
		panic("mount: insert side sighted a settled reparenting record")
	}
	insert = !(rec.existing.Has(MutationRemove) && rec.index == index && rec.parentTag == parentTag)
	rec.erase |= rec.existing & MutationDelete
	if !insert {
		rec.erase |= rec.existing & MutationRemove
	}
	if rec.erase != 0 {
		t.outstanding++
	}
	return insert, false, rec.oldNode
}

// shouldCreateUpdate settles a node whose Insert was already emitted by
// position matching. If a Delete is pending for the tag, the node moved:
// the Delete is marked for erasure and the returned old generation turns
// the would-be Create into an Update.
func (t *reparentingTracker) shouldCreateUpdate(node *shadow.Node) (create bool, substitute *shadow.Node) {
	if !t.enabled {
		return true, nil
	}

	rec, ok := t.records[node.Tag()]
	if !ok {
		panic("mount: insert emitted without a reparenting record")
	}

	if rec.existing.Has(MutationDelete) {
		t.outstanding++
		rec.erase |= MutationDelete
		rec.newNode = node
		return false, rec.oldNode
	}

	rec.existing |= MutationCreate
	return true, nil
}

// markInserted registers an insert that resolved a reorder. The node moved
// here from elsewhere in the hierarchy, so the Insert can no longer be
// cancelled against a Remove.
func (t *reparentingTracker) markInserted(parentTag shadow.Tag, node *shadow.Node, index int) {
	if !t.enabled {
		return
	}

	tag := node.Tag()
	if rec, ok := t.records[tag]; ok {
		rec.existing |= MutationInsert
		return
	}
	t.records[tag] = &opRecord{
		existing:  MutationInsert,
		index:     index,
		parentTag: parentTag,
	}
}

// removeUselessRecords drops records with nothing left to erase, so the
// prune pass only ever consults records that still matter.
func (t *reparentingTracker) removeUselessRecords() {
	if !t.enabled {
		return
	}
	for tag, rec := range t.records {
		if rec.erase == 0 {
			delete(t.records, tag)
		}
	}
}

// prune strips the mutations obviated by reparenting from a finished diff.
// Each record's erase bits are consumed as matching mutations are visited;
// once every record is spent the remainder of the list passes through
// untouched.
func (t *reparentingTracker) prune(mutations []Mutation) []Mutation {
	if !t.enabled || t.outstanding == 0 {
		return mutations
	}
	t.removeUselessRecords()

	kept := mutations[:0]
	for _, m := range mutations {
		if t.outstanding == 0 {
			kept = append(kept, m)
			continue
		}

		tag := m.OldChildView.Tag
		if m.Type == MutationInsert || m.Type == MutationCreate {
			tag = m.NewChildView.Tag
		}
		rec, ok := t.records[tag]
		if !ok {
			kept = append(kept, m)
			continue
		}

		drop := rec.erase.Has(m.Type)
		rec.erase &^= m.Type
		if rec.erase == 0 {
			delete(t.records, tag)
			t.outstanding--
		}
		if !drop {
			kept = append(kept, m)
		}
	}
	return kept
}
