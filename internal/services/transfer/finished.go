package transfer

import "sync"

type finished struct {
	d    *Descriptor
	at   *activeTransfer
	code int
	body []byte
	err  error
}

// finishedQueue is the only state pool goroutines share with the Tick side.
type finishedQueue struct {
	mu    sync.Mutex
	items []finished
}

func (q *finishedQueue) push(f finished) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
}

func (q *finishedQueue) take() []finished {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
