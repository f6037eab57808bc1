package memstore

import (
	"context"
	"sync"

	"github.com/dyluth/multitab/pkg/storage"
)

// mailbox is an unbounded FIFO between a writer that must never block and a
// single consumer goroutine.
type mailbox struct {
	mu     sync.Mutex
	queue  []storage.Change
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (mb *mailbox) push(c storage.Change) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, c)
	mb.mu.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
	}
}

func (mb *mailbox) drain() []storage.Change {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	items := mb.queue
	mb.queue = nil
	return items
}

// pump forwards queued changes to out until ctx is done.
func (mb *mailbox) pump(ctx context.Context, out chan<- storage.Change) {
	for {
		items := mb.drain()
		for _, c := range items {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
		if len(items) > 0 {
			continue
		}
		select {
		case <-mb.signal:
		case <-ctx.Done():
			return
		}
	}
}
