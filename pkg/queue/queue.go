package queue

import (
	"sync"
	"time"
)

// Retry is a borrow record whose overdue check failed and will be tried
// again at RetryAt.
type Retry struct {
	RecordUid string
	RetryAt   time.Time
	Attempts  int
}

// Queue holds pending retries, at most one per record.
type Queue struct {
	items map[string]*Retry
	mu    sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{items: make(map[string]*Retry)}
}

// Enqueue schedules uid for another attempt after delay. A uid already
// queued keeps its attempt count and moves to the new time.
func (q *Queue) Enqueue(uid string, delay time.Duration, now time.Time) *Retry {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[uid]
	if !ok {
		item = &Retry{RecordUid: uid}
		q.items[uid] = item
	}
	item.Attempts++
	item.RetryAt = now.Add(delay)
	return item
}

// Due removes and returns every retry whose time has come.
func (q *Queue) Due(now time.Time) []Retry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Retry
	for uid, item := range q.items {
		if !item.RetryAt.After(now) {
			due = append(due, *item)
			delete(q.items, uid)
		}
	}
	return due
}

// Requeue puts back a retry taken by Due, counting one more attempt.
func (q *Queue) Requeue(r Retry, delay time.Duration, now time.Time) *Retry {
	q.mu.Lock()
	defer q.mu.Unlock()

	r.Attempts++
	r.RetryAt = now.Add(delay)
	q.items[r.RecordUid] = &r
	return &r
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
