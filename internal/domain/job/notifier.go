package job

import "sync"

// Notifier wakes subscribers when a job produces output or changes state.
//
// Signals are level-triggered and coalesced: each subscription channel buffers one
// pending wakeup, and a subscriber re-reads current state after waking rather than
// counting signals.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewNotifier constructs an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in jobID. The returned func unsubscribes and closes the channel.
func (n *Notifier) Subscribe(jobID string) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[chan struct{}]struct{})
	}
	n.subs[jobID][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[jobID]
		if subscribers == nil {
			return
		}
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			delete(n.subs, jobID)
		}
	}

	return unsub, ch
}

// Notify wakes every subscriber of jobID without blocking.
func (n *Notifier) Notify(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[jobID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for jobID.
func (n *Notifier) Subscribers(jobID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[jobID])
}

// StopAll closes every subscription channel.
func (n *Notifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobID, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, jobID)
	}
}

// drainAndClose removes any buffered notifications before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
