package repository

import "sync"

// Buffer accumulates accepted records between flushes and remembers how many
// of them have already been appended to the checkpoint file.
type Buffer struct {
	items        []ResultRecord
	checkpointed int
	mu           sync.Mutex
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(records ...ResultRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, records...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.items)
}

// Items returns a copy of the buffered records
func (b *Buffer) Items() []ResultRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ResultRecord, len(b.items))
	copy(out, b.items)
	return out
}

// Pending returns the records not yet written to the checkpoint file
func (b *Buffer) Pending() []ResultRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ResultRecord, len(b.items)-b.checkpointed)
	copy(out, b.items[b.checkpointed:])
	return out
}

func (b *Buffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.items) - b.checkpointed
}

// MarkCheckpointed records that the first n pending records were written
func (b *Buffer) MarkCheckpointed(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkpointed += n
	if b.checkpointed > len(b.items) {
		b.checkpointed = len(b.items)
	}
}

// Drop removes the first n records, used after a partial flush
func (b *Buffer) Drop(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > len(b.items) {
		n = len(b.items)
	}
	if n <= 0 {
		return
	}
	b.items = append(b.items[:0], b.items[n:]...)
	b.checkpointed -= n
	if b.checkpointed < 0 {
		b.checkpointed = 0
	}
}
