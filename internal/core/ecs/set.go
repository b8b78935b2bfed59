package ecs

// EntitySet is a dense set of entity ids with O(1) add, remove and
// membership. Iteration order is deterministic: insertion order, except
// that removal moves the last element into the hole. Removing the most
// recently added id therefore restores the exact previous state.
type EntitySet struct {
	dense []EntityID
	index map[EntityID]int
}

func NewEntitySet(capacity int) *EntitySet {
	return &EntitySet{
		dense: make([]EntityID, 0, capacity),
		index: make(map[EntityID]int, capacity),
	}
}

// Add returns false if id was already present.
func (s *EntitySet) Add(id EntityID) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.dense)
	s.dense = append(s.dense, id)
	return true
}

// Remove returns false if id was not present.
func (s *EntitySet) Remove(id EntityID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.dense) - 1
	if i != last {
		moved := s.dense[last]
		s.dense[i] = moved
		s.index[moved] = i
	}
	s.dense = s.dense[:last]
	delete(s.index, id)
	return true
}

func (s *EntitySet) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *EntitySet) Len() int { return len(s.dense) }

// Entities returns the backing slice. It is only valid until the next
// Add or Remove; callers that mutate the set while walking it must Copy.
func (s *EntitySet) Entities() []EntityID { return s.dense }

// Copy returns a snapshot of the members.
func (s *EntitySet) Copy() []EntityID {
	out := make([]EntityID, len(s.dense))
	copy(out, s.dense)
	return out
}

func (s *EntitySet) Clear() {
	s.dense = s.dense[:0]
	clear(s.index)
}
