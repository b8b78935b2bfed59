package ecs

// RemovalQueue holds entity removals requested while a collection was
// being iterated. Scheduling is idempotent and drain order is request order.
// An id cancelled and scheduled again before the next drain keeps its
// first position, so pending never holds an id twice.
type RemovalQueue struct {
	pending   []EntityID
	queued    map[EntityID]struct{} // ids present in pending
	scheduled map[EntityID]struct{}
}

func NewRemovalQueue() *RemovalQueue {
	return &RemovalQueue{
		pending:   make([]EntityID, 0, 64),
		queued:    make(map[EntityID]struct{}, 64),
		scheduled: make(map[EntityID]struct{}, 64),
	}
}

// Schedule queues id and reports whether it was newly queued.
func (q *RemovalQueue) Schedule(id EntityID) bool {
	if _, ok := q.scheduled[id]; ok {
		return false
	}
	q.scheduled[id] = struct{}{}
	if _, ok := q.queued[id]; !ok {
		q.queued[id] = struct{}{}
		q.pending = append(q.pending, id)
	}
	return true
}

// Cancel drops a pending removal, used when the entity is removed directly.
func (q *RemovalQueue) Cancel(id EntityID) {
	delete(q.scheduled, id)
}

func (q *RemovalQueue) Pending(id EntityID) bool {
	_, ok := q.scheduled[id]
	return ok
}

func (q *RemovalQueue) Len() int { return len(q.scheduled) }

// Drain calls fn for every still-scheduled id. Ids scheduled by fn itself
// are drained in the same call.
func (q *RemovalQueue) Drain(fn func(EntityID)) int {
	n := 0
	for i := 0; i < len(q.pending); i++ {
		id := q.pending[i]
		delete(q.queued, id)
		if _, ok := q.scheduled[id]; !ok {
			continue
		}
		delete(q.scheduled, id)
		fn(id)
		n++
	}
	q.pending = q.pending[:0]
	return n
}
