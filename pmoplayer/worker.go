package pmoplayer

import "sync"

// worker exécute les jobs un par un, dans l'ordre de soumission. La file
// n'est pas bornée : une soumission ne bloque jamais l'appelant.
type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
}

func newWorker() *worker {
	w := &worker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// submit ajoute job ; faux si le worker est fermé.
func (w *worker) submit(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.jobs = append(w.jobs, job)
	w.cond.Signal()
	return true
}

// flush attend l'exécution des jobs déjà soumis.
func (w *worker) flush() {
	ch := make(chan struct{})
	if !w.submit(func() { close(ch) }) {
		<-w.done
		return
	}
	<-ch
}

// close termine les jobs en attente puis arrête la goroutine.
func (w *worker) close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()
	<-w.done
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.jobs) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.jobs) == 0 {
			w.mu.Unlock()
			return
		}
		job := w.jobs[0]
		w.jobs[0] = nil
		w.jobs = w.jobs[1:]
		w.mu.Unlock()

		job()
	}
}
