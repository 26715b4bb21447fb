package thumbnail

import "sync"

// serialQueue runs submitted tasks one at a time, in submission
// order, on a single long lived goroutine. It stands in for the
// cooperative dispatch queues the generator schedules its capture
// work and result delivery onto.
type serialQueue struct {
	mu       sync.Mutex
	closed   bool
	tasks    chan func()
	stopping chan interface{}
}

func newSerialQueue() *serialQueue {
	q := serialQueue{
		tasks:    make(chan func(), 64),
		stopping: make(chan interface{}),
	}
	go q.run()
	return &q
}

func (q *serialQueue) run() {
	for task := range q.tasks {
		task()
	}
	close(q.stopping)
}

// do submits a task for later execution. Tasks submitted after the
// queue has closed are dropped.
func (q *serialQueue) do(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks <- task
}

// close stops accepting tasks and waits for already submitted ones
// to finish running.
func (q *serialQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.stopping
}
