package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

// ChannelSink forwards events to a channel for a live subscriber. The
// channel is closed when the hub closes the sink.
type ChannelSink struct {
	ch        chan progress.Event
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewChannelSink returns a sink whose channel holds buffer events.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan progress.Event, buffer)}
}

// Events returns the subscription channel.
func (s *ChannelSink) Events() <-chan progress.Event {
	return s.ch
}

// Consume delivers the batch, waiting on a slow reader until ctx expires.
func (s *ChannelSink) Consume(ctx context.Context, batch []progress.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	for _, evt := range batch {
		select {
		case s.ch <- evt:
		case <-ctx.Done():
			return fmt.Errorf("deliver progress event: %w", ctx.Err())
		}
	}
	return nil
}

// Close closes the subscription channel.
func (s *ChannelSink) Close(context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}
