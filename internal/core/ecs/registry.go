package ecs

// SystemID is the interned form of a system name, used as the key of an
// entity's component attachments.
type SystemID uint16

// Registry interns system names into dense SystemIDs in registration order.
type Registry struct {
	names []string
	ids   map[string]SystemID
}

func NewRegistry() *Registry {
	return &Registry{
		names: make([]string, 0, 16),
		ids:   make(map[string]SystemID, 16),
	}
}

// Intern returns the id for name, assigning the next one if name is new.
func (r *Registry) Intern(name string) (SystemID, bool) {
	if id, ok := r.ids[name]; ok {
		return id, false
	}
	id := SystemID(len(r.names))
	r.names = append(r.names, name)
	r.ids[name] = id
	return id, true
}

// Forget drops name if it is the most recently interned, the only case
// where ids stay dense. Reports whether it was dropped.
func (r *Registry) Forget(name string) bool {
	id, ok := r.ids[name]
	if !ok || int(id) != len(r.names)-1 {
		return false
	}
	r.names = r.names[:id]
	delete(r.ids, name)
	return true
}

func (r *Registry) Lookup(name string) (SystemID, bool) {
	id, ok := r.ids[name]
	return id, ok
}

func (r *Registry) Name(id SystemID) string {
	if int(id) >= len(r.names) {
		return ""
	}
	return r.names[id]
}

func (r *Registry) Len() int { return len(r.names) }
