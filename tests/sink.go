package testutil

import (
	"context"
	"sync"

	"github.com/trezcool/shala/core/notify"
)

// Sink records the batches it receives. When Err is set, batches are recorded then Err is returned.
type Sink struct {
	mu      sync.Mutex
	Batches [][]notify.Message
	Err     error
}

var _ notify.Sink = (*Sink)(nil)

func (s *Sink) SendBatch(_ context.Context, msgs []notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Batches = append(s.Batches, msgs)
	return s.Err
}

// Messages returns every recorded message, in order.
func (s *Sink) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []notify.Message
	for _, b := range s.Batches {
		all = append(all, b...)
	}
	return all
}

func (s *Sink) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Batches)
}
