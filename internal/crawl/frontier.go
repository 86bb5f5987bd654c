package crawl

import (
	"sync"

	"harvester/internal/model"
)

// Frontier is the LIFO stack of pending crawl tasks shared by the workers.
// It tracks tasks in flight so Pop can tell "empty for now" from "done".
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	stack    []model.CrawlTask
	pending  map[model.TaskKey]struct{}
	inFlight int
	closed   bool
}

func NewFrontier() *Frontier {
	f := &Frontier{pending: make(map[model.TaskKey]struct{})}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push adds tasks that are not already waiting on the stack and reports
// how many were added.
func (f *Frontier) Push(tasks ...model.CrawlTask) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0
	}
	added := 0
	for _, t := range tasks {
		if _, ok := f.pending[t.Key()]; ok {
			continue
		}
		f.pending[t.Key()] = struct{}{}
		f.stack = append(f.stack, t)
		added++
	}
	if added > 0 {
		f.cond.Broadcast()
	}
	return added
}

// Pop blocks until a task is available and marks it in flight. It returns
// false once the stack is empty with nothing in flight, or after Close.
func (f *Frontier) Pop() (model.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.stack) == 0 && f.inFlight > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.stack) == 0 {
		return model.CrawlTask{}, false
	}

	last := len(f.stack) - 1
	t := f.stack[last]
	f.stack = f.stack[:last]
	delete(f.pending, t.Key())
	f.inFlight++
	return t, true
}

// Done releases a task taken with Pop. Push follow-up tasks before calling it.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inFlight--
	if f.inFlight == 0 && len(f.stack) == 0 {
		f.cond.Broadcast()
	}
}

// Close wakes every waiting Pop and refuses further work.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.stack)
}
