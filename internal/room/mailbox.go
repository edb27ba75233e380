package room

import "sync"

// mailbox is an unbounded FIFO with a single consumer. push never blocks, so
// the hub can enqueue while the actor is busy.
type mailbox struct {
	mu     sync.Mutex
	queue  []Command
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// push appends cmd and wakes the consumer. It returns false once closed.
func (m *mailbox) push(cmd Command) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, cmd)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) pop() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, false
	}
	cmd := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return cmd, true
}

func (m *mailbox) ready() <-chan struct{} {
	return m.notify
}

// close rejects further pushes and returns how many commands were dropped.
func (m *mailbox) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	dropped := len(m.queue)
	m.queue = nil
	return dropped
}
