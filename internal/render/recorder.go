package render

import "fmt"

// Recorder is a headless Canvas. It keeps the live instruction set and the
// last submitted frame, which is enough for the host's stats output and
// for tests.
type Recorder struct {
	next    Handle
	live    map[Handle]Instance
	batches []Batch

	Created  int
	Updated  int
	Released int
	Frames   int
}

func NewRecorder() *Recorder {
	return &Recorder{live: make(map[Handle]Instance, 256)}
}

func (r *Recorder) Create(inst Instance, texture, model string) Handle {
	r.next++
	r.live[r.next] = inst
	r.Created++
	return r.next
}

func (r *Recorder) Update(h Handle, inst Instance) {
	if _, ok := r.live[h]; !ok {
		panic(fmt.Sprintf("render: update of released handle %d", h))
	}
	r.live[h] = inst
	r.Updated++
}

func (r *Recorder) Release(h Handle) {
	if _, ok := r.live[h]; !ok {
		panic(fmt.Sprintf("render: double release of handle %d", h))
	}
	delete(r.live, h)
	r.Released++
}

func (r *Recorder) ReleaseAll(handles []Handle) {
	for _, h := range handles {
		r.Release(h)
	}
}

func (r *Recorder) Submit(batches []Batch) {
	r.batches = batches
	r.Frames++
}

// Live is the number of instructions currently held.
func (r *Recorder) Live() int { return len(r.live) }

// Instance returns the data last written for h.
func (r *Recorder) Instance(h Handle) (Instance, bool) {
	inst, ok := r.live[h]
	return inst, ok
}

// LastFrame returns the batches of the most recent Submit.
func (r *Recorder) LastFrame() []Batch { return r.batches }
