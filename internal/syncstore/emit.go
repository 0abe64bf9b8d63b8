package syncstore

import "sync"

// Emitter delivers notifications in the order their tickets were taken.
// Owners take a Ticket while holding their state lock, release it, then
// call Deliver; deliveries run with no owner lock held, so a callback may
// read the owner's state. A callback that takes a new ticket on the same
// Emitter and delivers it deadlocks.
//
// The zero value is ready to use.
type Emitter struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	done uint64
}

// Ticket reserves the next delivery slot.
func (e *Emitter) Ticket() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.next
	e.next++
	return t
}

// Deliver waits until every earlier ticket has been delivered, then runs
// fn. The slot is released even if fn panics.
func (e *Emitter) Deliver(ticket uint64, fn func()) {
	e.mu.Lock()
	if e.cond == nil {
		e.cond = sync.NewCond(&e.mu)
	}
	for e.done != ticket {
		e.cond.Wait()
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.done++
		e.cond.Broadcast()
		e.mu.Unlock()
	}()
	fn()
}
