package pipeline

import (
	"sync"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
	"github.com/gurnoornatt/supergoodleadgen/internal/sink"
)

// orderedWriter emits one chunk's records in input order. Records completed
// ahead of an earlier one wait in pending until the gap is filled. emitted
// runs once for each record actually written.
type orderedWriter struct {
	mu      sync.Mutex
	out     sink.Writer
	emitted func(*model.LeadRecord)
	next    int
	pending map[int]*model.LeadRecord
	err     error
}

func newOrderedWriter(out sink.Writer, emitted func(*model.LeadRecord)) *orderedWriter {
	return &orderedWriter{out: out, emitted: emitted, pending: make(map[int]*model.LeadRecord)}
}

// complete marks the record at chunk position i ready and flushes every
// record that is now next in line.
func (w *orderedWriter) complete(i int, rec *model.LeadRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[i] = rec
	for {
		r, ok := w.pending[w.next]
		if !ok {
			return
		}
		delete(w.pending, w.next)
		w.next++
		if w.err != nil {
			continue
		}
		if err := w.out.Write(r); err != nil {
			w.err = err
			continue
		}
		w.emitted(r)
	}
}

// held is the number of completed records still waiting on a gap.
func (w *orderedWriter) held() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Err returns the first output write error.
func (w *orderedWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
