package egress

import "testing"

func TestEnqueueUnderCapAccepted(t *testing.T) {
	q := New(10, 10) // hard cap 100
	ok, _ := q.Enqueue([]byte("x"))
	if !ok {
		t.Fatalf("expected enqueue accepted")
	}
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
}

func TestEnqueueAtHardCapDropsAndIncrementsCounter(t *testing.T) {
	q := New(1, 1) // hard cap 1
	q.Enqueue([]byte("a"))

	ok, warn := q.Enqueue([]byte("b"))
	if ok {
		t.Fatalf("expected second enqueue to be dropped")
	}
	if !warn {
		t.Fatalf("expected warn on first drop of an episode")
	}
	if q.Len() != 1 {
		t.Fatalf("expected size to remain at hard cap 1, got %d", q.Len())
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected dropped counter 1, got %d", q.Dropped())
	}
}

func TestOverflowWarningIsRateLimitedUntilDrainedEmpty(t *testing.T) {
	q := New(1, 1)
	q.Enqueue([]byte("a"))

	_, warn1 := q.Enqueue([]byte("b"))
	_, warn2 := q.Enqueue([]byte("c"))
	if !warn1 || warn2 {
		t.Fatalf("expected only the first drop in an episode to warn, got warn1=%v warn2=%v", warn1, warn2)
	}

	if q.Dropped() != 2 {
		t.Fatalf("expected dropped counter 2, got %d", q.Dropped())
	}
}

func TestDrainRespectsMaxSend(t *testing.T) {
	q := New(10, 10)
	for i := 0; i < 5; i++ {
		q.Enqueue([]byte{byte(i)})
	}

	got := q.Drain(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 buffers drained, got %d", len(got))
	}
}

func TestAdvancePopsCompletedBufferAndReportsEmpty(t *testing.T) {
	q := New(10, 10)
	q.Enqueue([]byte("ab"))

	becameEmpty := q.Advance(1)
	if becameEmpty {
		t.Fatalf("partial write should not report empty")
	}
	if q.Len() != 1 {
		t.Fatalf("buffer should still be queued after partial write")
	}

	becameEmpty = q.Advance(1)
	if !becameEmpty {
		t.Fatalf("expected queue to report becoming empty after full write")
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty, got len %d", q.Len())
	}
}

func TestReleaseDiscardsAllBuffers(t *testing.T) {
	q := New(10, 10)
	q.Enqueue([]byte("a"))
	q.Enqueue([]byte("b"))
	q.Release()

	if q.Len() != 0 {
		t.Fatalf("expected empty queue after release, got %d", q.Len())
	}
}

func TestOverflowEpisodeRewarnsAfterDrainingToEmpty(t *testing.T) {
	q := New(1, 1)
	q.Enqueue([]byte("a"))
	q.Enqueue([]byte("b")) // dropped, warn
	q.Advance(1)           // drains the sole buffer fully -> empty, re-arms warning

	_, warn := q.Enqueue([]byte("c"))
	if warn {
		t.Fatalf("enqueue under cap should not warn")
	}

	// c filled the hard cap of 1, so d is the first drop of the new episode
	_, warn2 := q.Enqueue([]byte("d"))
	if !warn2 {
		t.Fatalf("expected fresh warning in the new overflow episode")
	}
}
