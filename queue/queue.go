// Package queue provides the two channels shared across peer-session
// goroutines: the bounded multi-producer/multi-consumer WorkQueue of
// outstanding pieces, and the bounded multi-producer/single-consumer
// ResultSink of verified pieces.
package queue

import "github.com/drivasperez/torrent/piece"

// ResultSinkCapacity is the default buffer size for a ResultSink.
const ResultSinkCapacity = 50

// WorkQueue is a bounded channel of piece.Descriptor. Any session may
// Pop a descriptor to attempt, and Push one back on failure; capacity
// equals the piece count so Push never actually blocks in practice.
type WorkQueue struct {
	ch chan piece.Descriptor
}

// NewWorkQueue allocates a WorkQueue with one slot per descriptor and
// pre-fills it with the given descriptors.
func NewWorkQueue(descriptors []piece.Descriptor) *WorkQueue {
	ch := make(chan piece.Descriptor, len(descriptors))
	for _, d := range descriptors {
		ch <- d
	}
	return &WorkQueue{ch: ch}
}

// Pop suspends until a descriptor is available or the queue is
// closed, in which case ok is false.
func (q *WorkQueue) Pop() (d piece.Descriptor, ok bool) {
	d, ok = <-q.ch
	return d, ok
}

// Push requeues a descriptor, suspending if the queue is momentarily
// full (never the case in practice, since capacity equals piece
// count).
func (q *WorkQueue) Push(d piece.Descriptor) {
	q.ch <- d
}

// Close signals that no more work will ever be produced. It is the
// orchestrator's responsibility to call this once, after the last
// verified piece has been emitted.
func (q *WorkQueue) Close() {
	close(q.ch)
}

// ResultSink is a bounded channel of verified piece.Result. Every
// session task may Send; only the orchestrator's sink-consumer
// receives.
type ResultSink struct {
	ch chan piece.Result
}

// NewResultSink allocates a ResultSink with the default capacity.
func NewResultSink() *ResultSink {
	return &ResultSink{ch: make(chan piece.Result, ResultSinkCapacity)}
}

// Send applies backpressure on the calling session until the sink
// consumer drains a slot.
func (s *ResultSink) Send(r piece.Result) {
	s.ch <- r
}

// Results exposes the receive-only channel for the sink consumer.
func (s *ResultSink) Results() <-chan piece.Result {
	return s.ch
}
