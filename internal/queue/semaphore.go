package queue

// Semaphore is a channel-based counting semaphore bounding concurrent runs.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a semaphore with n slots.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{ch: make(chan struct{}, n)}
}

// TryAcquire takes a slot without blocking. Returns false when full.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot.
func (s *Semaphore) Release() {
	select {
	case <-s.ch:
	default:
	}
}

// InUse returns the number of held slots.
func (s *Semaphore) InUse() int {
	return len(s.ch)
}

// Cap returns the total slot count.
func (s *Semaphore) Cap() int {
	return cap(s.ch)
}
