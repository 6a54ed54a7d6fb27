package funnel

import "sync"

// lane runs jobs one at a time in arrival order on a background goroutine,
// so enqueue never blocks the caller.
type lane struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	pending sync.WaitGroup
}

func (l *lane) enqueue(job func()) {
	l.pending.Add(1)
	l.mu.Lock()
	l.queue = append(l.queue, job)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	go l.drain()
}

func (l *lane) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		job := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		func() {
			defer l.pending.Done()
			job()
		}()
	}
}

func (l *lane) wait() { l.pending.Wait() }
