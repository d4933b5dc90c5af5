package mount

import "github.com/stratum-ui/stratum/pkg/shadow"

// tinyEntry is one slot of a tinyMap. Erased slots keep their position
// with the key zeroed until the next compaction.
type tinyEntry[V any] struct {
	key   shadow.Tag
	value V
}

// tinyMap is a small insertion-ordered map keyed by tag. One diff level
// tracks at most a handful of sibling tags, so a linear scan over a slice
// beats a real map: no hashing, no per-entry allocation, and insertion is
// a plain append.
//
// Erasure is lazy: the slot's key becomes 0 and stays in place. The slice
// is compacted only when erased slots reach half the storage, or when an
// iteration would otherwise visit erased slots that are not all at the
// front. The front-run case is the common one (sequential consumption)
// and costs only an offset bump.
type tinyMap[V any] struct {
	entries       []tinyEntry[V]
	numErased     int
	erasedAtFront int
}

// insert appends an entry. Key 0 is reserved for erased slots.
func (m *tinyMap[V]) insert(key shadow.Tag, value V) {
	if key == 0 {
		panic("mount: tinyMap insert with reserved tag 0")
	}
	m.entries = append(m.entries, tinyEntry[V]{key: key, value: value})
}

// find returns the slot index holding key, or -1. The index stays valid
// until the next call that may compact the map (find, begin).
func (m *tinyMap[V]) find(key shadow.Tag) int {
	if key == 0 {
		panic("mount: tinyMap find with reserved tag 0")
	}
	m.clean(false)
	for i := m.erasedAtFront; i < len(m.entries); i++ {
		if m.entries[i].key == key {
			return i
		}
	}
	return -1
}

// at returns the value in slot i.
func (m *tinyMap[V]) at(i int) V {
	return m.entries[i].value
}

// keyAt returns the key in slot i; 0 for an erased slot.
func (m *tinyMap[V]) keyAt(i int) shadow.Tag {
	return m.entries[i].key
}

// erase invalidates slot i without moving later entries.
func (m *tinyMap[V]) erase(i int) {
	m.entries[i].key = 0
	if i == m.erasedAtFront {
		m.erasedAtFront++
	}
	m.numErased++
}

// begin returns the first slot index to iterate from, compacting first if
// erased slots would otherwise be interleaved with live ones. Iterate with
//
//	for i := m.begin(); i < m.size(); i++
//
// skipping slots whose key is 0.
func (m *tinyMap[V]) begin() int {
	m.clean(m.erasedAtFront != m.numErased)
	return m.erasedAtFront
}

// size returns the slot count, including erased slots.
func (m *tinyMap[V]) size() int {
	return len(m.entries)
}

// clean drops erased slots once they are at least half the storage, or
// when forced. A map whose erased slots are all at the front never needs
// compaction; the iteration offset covers it.
func (m *tinyMap[V]) clean(force bool) {
	if (m.numErased < len(m.entries)/2 && !force) || len(m.entries) == 0 ||
		m.numErased == 0 || m.numErased == m.erasedAtFront {
		return
	}

	if m.numErased == len(m.entries) {
		m.entries = m.entries[:0]
	} else {
		live := m.entries[:0]
		for _, e := range m.entries {
			if e.key != 0 {
				live = append(live, e)
			}
		}
		m.entries = live
	}
	m.numErased = 0
	m.erasedAtFront = 0
}
