package server

import (
	"sync"
	"time"

	"github.com/stratum-ui/stratum/pkg/mount"
)

// HistoryEntry stores one published transaction for potential replay.
type HistoryEntry struct {
	Transaction *mount.Transaction // Decoded form, for resync replies
	Frame       []byte             // Pre-encoded transaction frame, for fast replay
	SentAt      time.Time          // When the transaction was published
}

// History is a thread-safe ring buffer of recently published
// transactions. Entries form a chain: each entry's base revision is the
// previous entry's revision, so a contiguous suffix of the buffer can
// bring a client from any revision it covers to the newest one. The ring
// overwrites oldest entries when full; clients that fall out of the
// window get a snapshot instead.
type History struct {
	mu       sync.RWMutex
	entries  []*HistoryEntry
	head     int // Next write position (circular)
	count    int // Current number of entries
	capacity int // Max entries
}

// NewHistory creates a transaction history holding up to capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 128
	}
	return &History{
		entries:  make([]*HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Add records a published transaction and its encoded frame. The frame
// bytes are copied so callers may reuse their buffers.
func (h *History) Add(tx *mount.Transaction, frame []byte) {
	frameCopy := make([]byte, len(frame))
	copy(frameCopy, frame)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = &HistoryEntry{
		Transaction: tx,
		Frame:       frameCopy,
		SentAt:      time.Now(),
	}
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// at returns the i-th entry counting from the oldest. Callers hold h.mu.
func (h *History) at(i int) *HistoryEntry {
	return h.entries[(h.head-h.count+i+h.capacity)%h.capacity]
}

// after returns the chain of entries that moves a client past revision
// after, oldest first. ok is false when the buffer cannot bridge the gap
// and the client needs a snapshot. Callers hold h.mu.
func (h *History) after(after uint64) (chain []*HistoryEntry, ok bool) {
	if h.count == 0 {
		return nil, false
	}

	newest := h.at(h.count - 1).Transaction.Revision
	oldest := h.at(0).Transaction.BaseRevision
	if after == newest {
		return nil, true
	}
	if after < oldest || after > newest {
		return nil, false
	}

	for i := 0; i < h.count; i++ {
		if h.at(i).Transaction.BaseRevision == after {
			chain = make([]*HistoryEntry, 0, h.count-i)
			for ; i < h.count; i++ {
				chain = append(chain, h.at(i))
			}
			return chain, true
		}
	}

	// after falls inside a revision jump; no entry resumes from it.
	return nil, false
}

// After returns the encoded frames that move a client past revision
// after, in publish order. ok is false when the history cannot bridge
// the gap; the client then needs a snapshot.
func (h *History) After(after uint64) (frames [][]byte, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chain, ok := h.after(after)
	if !ok {
		return nil, false
	}
	frames = make([][]byte, len(chain))
	for i, entry := range chain {
		frames[i] = entry.Frame
	}
	return frames, true
}

// TransactionsAfter returns the decoded transactions that move a client
// past revision after, in publish order. ok mirrors After.
func (h *History) TransactionsAfter(after uint64) (txs []*mount.Transaction, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	chain, ok := h.after(after)
	if !ok {
		return nil, false
	}
	txs = make([]*mount.Transaction, len(chain))
	for i, entry := range chain {
		txs[i] = entry.Transaction
	}
	return txs, true
}

// CanRecover reports whether a client at revision after can be caught up
// from the buffer alone.
func (h *History) CanRecover(after uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.after(after)
	return ok
}

// Latest returns the newest revision in the buffer, or 0 when empty.
func (h *History) Latest() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.at(h.count - 1).Transaction.Revision
}

// OldestBase returns the base revision of the oldest entry. ok is false
// when the buffer is empty.
func (h *History) OldestBase() (base uint64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0, false
	}
	return h.at(0).Transaction.BaseRevision, true
}

// Len returns the number of entries in the buffer.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear removes all entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.entries {
		h.entries[i] = nil
	}
	h.head = 0
	h.count = 0
}
