package internal

import (
	"container/heap"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

// delayQueue holds retrying recipients ordered by due time, then send order.
type delayQueue struct {
	items recipientHeap
}

func (q *delayQueue) Len() int { return len(q.items) }

func (q *delayQueue) Push(r *campaign.Recipient) {
	heap.Push(&q.items, r)
}

// PopDue removes and returns every recipient due at or before now.
func (q *delayQueue) PopDue(now time.Time) []*campaign.Recipient {
	var due []*campaign.Recipient
	for len(q.items) > 0 && !q.items[0].NextAttemptAt.After(now) {
		due = append(due, heap.Pop(&q.items).(*campaign.Recipient))
	}
	return due
}

// Next returns the earliest due time. ok is false when the queue is empty.
func (q *delayQueue) Next() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].NextAttemptAt, true
}

// Drain removes and returns everything in the queue.
func (q *delayQueue) Drain() []*campaign.Recipient {
	out := []*campaign.Recipient(q.items)
	q.items = nil
	return out
}

type recipientHeap []*campaign.Recipient

func (h recipientHeap) Len() int { return len(h) }

func (h recipientHeap) Less(i, j int) bool {
	if h[i].NextAttemptAt.Equal(h[j].NextAttemptAt) {
		return h[i].Seq < h[j].Seq
	}
	return h[i].NextAttemptAt.Before(h[j].NextAttemptAt)
}

func (h recipientHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *recipientHeap) Push(x any) { *h = append(*h, x.(*campaign.Recipient)) }

func (h *recipientHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}
