package report

import (
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 256

// AsyncSink decouples analysis workers from a slow downstream sink.
//
// Report enqueues onto a buffered channel and returns; a single goroutine
// drains the queue and forwards each issue to the wrapped sink, so the
// wrapped sink never sees concurrent calls. Close stops accepting issues,
// drains what is queued and waits for the goroutine to exit.
type AsyncSink struct {
	next Sink

	queue     chan Issue
	closeChan chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// sendMu lets Close wait out in-flight Report calls before the queue is
	// drained for the last time
	sendMu sync.RWMutex

	forwarded atomic.Int64
	dropped   atomic.Int64
}

// NewAsyncSink starts the forwarding goroutine. queueSize <= 0 uses a
// default buffer.
func NewAsyncSink(next Sink, queueSize int) *AsyncSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &AsyncSink{
		next:      next,
		queue:     make(chan Issue, queueSize),
		closeChan: make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	go s.forward()
	return s
}

// Report queues the issue, blocking while the queue is full. Issues
// reported after Close are dropped and counted.
func (s *AsyncSink) Report(file string, line int, ruleKey, message string) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	if s.closed.Load() {
		s.dropped.Add(1)
		return
	}
	s.queue <- Issue{File: file, Line: line, RuleKey: ruleKey, Message: message}
}

// Close flushes queued issues to the wrapped sink and stops the goroutine.
// Safe to call more than once.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Wait for senders that passed the closed check
		s.sendMu.Lock()
		close(s.closeChan)
		s.sendMu.Unlock()
		<-s.doneChan
	})
}

// Forwarded returns how many issues reached the wrapped sink
func (s *AsyncSink) Forwarded() int64 {
	return s.forwarded.Load()
}

// Dropped returns how many issues arrived after Close
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AsyncSink) forward() {
	defer close(s.doneChan)

	for {
		select {
		case issue := <-s.queue:
			s.deliver(issue)
		case <-s.closeChan:
			// Drain whatever is still queued before exiting
			for {
				select {
				case issue := <-s.queue:
					s.deliver(issue)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) deliver(issue Issue) {
	s.next.Report(issue.File, issue.Line, issue.RuleKey, issue.Message)
	s.forwarded.Add(1)
}
