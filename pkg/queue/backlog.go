package queue

import "github.com/jainyogya07/monolith/pkg/model"

// Backlog keeps entries ordered by descending priority. Entries with equal
// priority stay in insertion order. It is not safe for concurrent use; the
// Manager guards it.
type Backlog struct {
	entries []model.QueuedEntry
}

// Insert places the entry before the first strictly lower priority, which is
// what keeps ties stable.
func (b *Backlog) Insert(entry model.QueuedEntry) {
	idx := len(b.entries)
	for i, existing := range b.entries {
		if existing.Score.Priority < entry.Score.Priority {
			idx = i
			break
		}
	}

	b.entries = append(b.entries, model.QueuedEntry{})
	copy(b.entries[idx+1:], b.entries[idx:])
	b.entries[idx] = entry
}

func (b *Backlog) PopFront() (model.QueuedEntry, bool) {
	if len(b.entries) == 0 {
		return model.QueuedEntry{}, false
	}
	head := b.entries[0]
	b.entries[0] = model.QueuedEntry{}
	b.entries = b.entries[1:]
	return head, true
}

func (b *Backlog) Len() int {
	return len(b.entries)
}

// Entries returns a copy in dequeue order.
func (b *Backlog) Entries() []model.QueuedEntry {
	out := make([]model.QueuedEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
