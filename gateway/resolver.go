package gateway

import (
	"sync"
)

type resolveEvent int

const (
	resolveReady resolveEvent = iota
	resolveResumed
	resolveInvalidSession
)

func (e resolveEvent) String() string {
	switch e {
	case resolveReady:
		return "READY"
	case resolveResumed:
		return "RESUMED"
	case resolveInvalidSession:
		return "INVALID_SESSION"
	}
	return "UNKNOWN"
}

// rendezvous holds at most one one-shot waiter per event name. A waiter is
// settled exactly once and removed; registering a new waiter for an event
// settles any prior one with errSuperseded so no attempt can hang.
type rendezvous struct {
	mu      sync.Mutex
	waiters map[resolveEvent]chan error
}

func newRendezvous() *rendezvous {
	return &rendezvous{waiters: make(map[resolveEvent]chan error)}
}

func (r *rendezvous) waiter(event resolveEvent) <-chan error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.waiters[event]; ok {
		old <- errSuperseded
	}
	ch := make(chan error, 1)
	r.waiters[event] = ch
	return ch
}

// resolve settles and removes the waiter for event, if one exists.
func (r *rendezvous) resolve(event resolveEvent, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.waiters[event]
	if !ok {
		return false
	}
	ch <- err
	delete(r.waiters, event)
	return true
}

// failAll settles every pending waiter with err.
func (r *rendezvous) failAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for event, ch := range r.waiters {
		ch <- err
		delete(r.waiters, event)
	}
}
