// Package egress implements EgressQueue (Q): a per-subscriber bounded FIFO
// of outbound byte buffers with drop-on-overflow and partial-write
// tracking (spec.md §4.5).
package egress

import "sync"

// Buffer is one outbound payload; Position tracks how many bytes have
// already been written so a partial write can resume on the next drain
// (spec.md §3 OutboundBuffer).
type Buffer struct {
	Bytes    []byte
	Position int
}

// Remaining returns the unwritten tail of the buffer.
func (b *Buffer) Remaining() []byte { return b.Bytes[b.Position:] }

// Done reports whether the buffer has been fully written.
func (b *Buffer) Done() bool { return b.Position >= len(b.Bytes) }

// Queue is a bounded FIFO with a soft cap (maxSend, enforced by the
// caller's drain loop) and a hard cap (maxQueueSize = maxSend*K). Enqueue
// beyond the hard cap drops the newest event and counts it; the warning
// is rate-limited by re-arming only once the queue has drained to empty
// (spec.md §4.5, §8).
type Queue struct {
	mu       sync.Mutex
	buffers  []*Buffer
	hardCap  int
	dropped  int
	warned   bool
}

// New builds a Queue whose hard cap is maxSend*k. k defaults to 10 when
// given as 0 or less, matching spec.md §4.5's "K≈10".
func New(maxSend, k int) *Queue {
	if k <= 0 {
		k = 10
	}
	return &Queue{hardCap: maxSend * k}
}

// Enqueue appends payload as a new buffer. It reports whether the event
// was accepted; when the queue is at hard cap the event is dropped and
// the dropped counter increments, with the overflow warning signaled
// (via the second return value) only on the first drop of an episode.
func (q *Queue) Enqueue(payload []byte) (accepted bool, shouldWarn bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buffers) >= q.hardCap {
		q.dropped++
		shouldWarn = !q.warned
		q.warned = true
		return false, shouldWarn
	}

	q.buffers = append(q.buffers, &Buffer{Bytes: payload})
	return true, false
}

// Drain returns up to maxSend buffers still needing (further) writing,
// in FIFO order, without removing them from the queue; the caller
// reports back via Advance how much of each was written.
func (q *Queue) Drain(maxSend int) []*Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if maxSend <= 0 || maxSend > len(q.buffers) {
		maxSend = len(q.buffers)
	}
	out := make([]*Buffer, maxSend)
	copy(out, q.buffers[:maxSend])
	return out
}

// Advance records that n additional bytes of the head buffer were
// written; once a buffer is Done it is popped from the queue and the
// queue's empty-to-armed transition is reported via the return value so
// the caller can re-arm the keepalive timer and reset the overflow
// warning latch (spec.md §4.5: "Drain policy").
func (q *Queue) Advance(n int) (becameEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buffers) == 0 {
		return false
	}

	head := q.buffers[0]
	head.Position += n
	if head.Done() {
		q.buffers = q.buffers[1:]
	}

	if len(q.buffers) == 0 {
		q.warned = false
		return true
	}
	return false
}

// Release discards every buffer without writing them, used on session
// cancellation (spec.md §9: "partial enqueue atomicity... the owning Q
// holds responsibility").
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffers = nil
	q.warned = false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffers)
}

func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) Empty() bool {
	return q.Len() == 0
}
