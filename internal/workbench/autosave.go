package workbench

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SaveFunc saves the state as of revision rev or later. It reads the state
// itself, so whatever it sends carries the current session id and name.
type SaveFunc func(ctx context.Context, rev uint64)

// AutoSaver runs auto-saves from a single goroutine. Only the newest
// scheduled revision is kept, at most one send is in flight, and a revision
// older than one already sent is dropped.
type AutoSaver struct {
	send  SaveFunc
	delay time.Duration
	log   *slog.Logger

	mu       sync.Mutex
	pending  uint64 // 0 when nothing is queued
	inflight bool
	closed   bool
	waiters  []chan struct{}
	lastRev  uint64

	wake chan struct{}
	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewAutoSaver starts a saver. With a positive delay, revisions scheduled
// within delay of the first one are coalesced into one send.
func NewAutoSaver(send SaveFunc, delay time.Duration, log *slog.Logger) *AutoSaver {
	if log == nil {
		log = slog.Default()
	}
	s := &AutoSaver{
		send:  send,
		delay: delay,
		log:   log,
		wake:  make(chan struct{}, 1),
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule queues revision rev. A revision older than the queued one is
// ignored.
func (s *AutoSaver) Schedule(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || rev <= s.pending {
		return
	}
	s.pending = rev
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush skips the debounce delay and waits until nothing is queued or in
// flight.
func (s *AutoSaver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.pending == 0 && !s.inflight {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends whatever is still queued and stops the saver.
func (s *AutoSaver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.stop)
	<-s.done
}

func (s *AutoSaver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case <-s.wake:
		}
		if s.delay > 0 && !s.debounce() {
			s.drain()
			return
		}
		s.drain()
	}
}

// debounce waits out the delay. It returns false when the saver is stopping.
func (s *AutoSaver) debounce() bool {
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.kick:
	case <-s.stop:
		return false
	}
	return true
}

func (s *AutoSaver) drain() {
	for {
		s.mu.Lock()
		rev := s.pending
		s.pending = 0
		if rev == 0 {
			s.inflight = false
			waiters := s.waiters
			s.waiters = nil
			s.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		s.inflight = true
		s.mu.Unlock()

		if rev <= s.lastRev {
			s.log.Debug("stale auto-save dropped", slog.Uint64("rev", rev))
			continue
		}
		s.lastRev = rev
		s.send(context.Background(), rev)
	}
}
