package main

import (
	"math/rand"
)

// ============================================================================
// Playback Queue
// ============================================================================

// PlaybackQueue is the ordered set of pending requests. It is not safe for
// concurrent use on its own; the owning PlayerSession serializes access.
// The currently playing item is never part of the queue.
type PlaybackQueue struct {
	items []QueueItem
}

func NewPlaybackQueue() *PlaybackQueue {
	return &PlaybackQueue{}
}

func (q *PlaybackQueue) Len() int {
	return len(q.items)
}

// Enqueue appends items, or inserts them at position when 0 <= position <=
// length. Any other position falls back to append.
func (q *PlaybackQueue) Enqueue(position int, items ...QueueItem) {
	if position < 0 || position > len(q.items) {
		q.items = append(q.items, items...)
		return
	}
	q.items = append(q.items[:position], append(append([]QueueItem{}, items...), q.items[position:]...)...)
}

// DequeueNext pops the head. A nil result means the queue is empty, which is
// not an error.
func (q *PlaybackQueue) DequeueNext() *QueueItem {
	if len(q.items) == 0 {
		return nil
	}
	item := q.items[0]
	q.items = q.items[1:]
	return &item
}

// Peek returns up to n items from the head without removing them, plus the
// count of items beyond those.
func (q *PlaybackQueue) Peek(n int) ([]QueueItem, int) {
	if n > len(q.items) {
		n = len(q.items)
	}
	head := make([]QueueItem, n)
	copy(head, q.items[:n])
	return head, len(q.items) - n
}

// RemoveRange removes the 1-based inclusive range [start, end]. An
// out-of-bounds start is a no-op returning an empty slice. end past the tail
// is clamped; end of 0 means "start only".
func (q *PlaybackQueue) RemoveRange(start, end int) []QueueItem {
	if start < 1 || start > len(q.items) {
		return nil
	}
	if end == 0 || end < start {
		end = start
	}
	if end > len(q.items) {
		end = len(q.items)
	}
	removed := make([]QueueItem, end-start+1)
	copy(removed, q.items[start-1:end])
	q.items = append(q.items[:start-1], q.items[end:]...)
	return removed
}

// RemoveByTrackID removes the first item whose track id matches. Absent is a
// no-op.
func (q *PlaybackQueue) RemoveByTrackID(trackID string) *QueueItem {
	for i, item := range q.items {
		if item.Track.ID == trackID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return &item
		}
	}
	return nil
}

// RemoveByEntryID removes the item with the given queue entry id.
func (q *PlaybackQueue) RemoveByEntryID(entryID int64) *QueueItem {
	for i, item := range q.items {
		if item.EntryID == entryID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return &item
		}
	}
	return nil
}

// Shuffle applies a uniform Fisher-Yates permutation. Queues shorter than 2
// are left alone.
func (q *PlaybackQueue) Shuffle(rng *rand.Rand) {
	if len(q.items) < 2 {
		return
	}
	for i := len(q.items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		q.items[i], q.items[j] = q.items[j], q.items[i]
	}
}

// MoveToFront moves the 1-based index to the head. Invalid indices are
// reported, not clamped.
func (q *PlaybackQueue) MoveToFront(index int) error {
	if len(q.items) == 0 {
		return ErrEmptyQueue
	}
	if index < 1 || index > len(q.items) {
		return ErrInvalidPosition
	}
	item := q.items[index-1]
	q.items = append(q.items[:index-1], q.items[index:]...)
	q.items = append([]QueueItem{item}, q.items...)
	return nil
}

// Swap exchanges two 1-based positions. Invalid indices are reported, not
// clamped.
func (q *PlaybackQueue) Swap(i, j int) error {
	if len(q.items) == 0 {
		return ErrEmptyQueue
	}
	if i < 1 || i > len(q.items) || j < 1 || j > len(q.items) {
		return ErrInvalidPosition
	}
	q.items[i-1], q.items[j-1] = q.items[j-1], q.items[i-1]
	return nil
}

// Clear drops every pending item and returns how many were dropped.
func (q *PlaybackQueue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

// Items returns a copy of the pending items, head first.
func (q *PlaybackQueue) Items() []QueueItem {
	out := make([]QueueItem, len(q.items))
	copy(out, q.items)
	return out
}
