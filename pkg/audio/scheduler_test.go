package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
}

func (r *recordingSink) Write(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]byte(nil), pcm...))
	return nil
}

func (r *recordingSink) Flush() {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
}

// pcmOf returns a mono PCM16 buffer of the given duration at 24kHz.
func pcmOf(d time.Duration) []byte {
	samples := int(24000 * d.Seconds())
	return make([]byte, samples*2)
}

func TestEnqueueStartTimesAreGapless(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	s, err := NewScheduler(sink, 24000, clock)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	durations := []time.Duration{
		20 * time.Millisecond,
		35 * time.Millisecond,
		10 * time.Millisecond,
		500 * time.Millisecond,
	}
	var starts []time.Time
	for _, d := range durations {
		start, err := s.Enqueue(pcmOf(d))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		starts = append(starts, start)
	}

	for i := 1; i < len(starts); i++ {
		if starts[i].Before(starts[i-1]) {
			t.Fatalf("start[%d]=%v before start[%d]=%v", i, starts[i], i-1, starts[i-1])
		}
		wantMin := starts[i-1].Add(durations[i-1])
		if starts[i].Before(wantMin) {
			t.Fatalf("start[%d]=%v overlaps previous chunk (want >= %v)", i, starts[i], wantMin)
		}
	}
	if len(sink.writes) != len(durations) {
		t.Fatalf("sink got %d writes, want %d", len(sink.writes), len(durations))
	}
}

func TestEnqueueAfterIdleStartsNow(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewScheduler(&recordingSink{}, 24000, clock)

	first, _ := s.Enqueue(pcmOf(20 * time.Millisecond))
	if !first.Equal(clock.Now()) {
		t.Fatalf("first chunk start = %v, want now %v", first, clock.Now())
	}

	// Let the schedule drain, then some. The next chunk must start at the
	// current clock time, not at the old tail.
	clock.Advance(time.Second)
	second, _ := s.Enqueue(pcmOf(20 * time.Millisecond))
	if !second.Equal(clock.Now()) {
		t.Fatalf("post-idle start = %v, want now %v", second, clock.Now())
	}
}

func TestInterruptResetsSchedule(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	s, _ := NewScheduler(sink, 24000, clock)

	// Build up a long future schedule.
	for i := 0; i < 5; i++ {
		if _, err := s.Enqueue(pcmOf(time.Second)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if s.Active() == 0 {
		t.Fatalf("no active chunks after enqueues")
	}

	s.Interrupt()

	if sink.flushes != 1 {
		t.Fatalf("sink flushed %d times, want 1", sink.flushes)
	}
	if s.Active() != 0 {
		t.Fatalf("active = %d after interrupt, want 0", s.Active())
	}
	if !s.NextStart().IsZero() {
		t.Fatalf("nextStart = %v after interrupt, want zero", s.NextStart())
	}

	// The next buffer starts at the then-current clock time, not the
	// stale pre-interrupt tail.
	start, _ := s.Enqueue(pcmOf(20 * time.Millisecond))
	if !start.Equal(clock.Now()) {
		t.Fatalf("post-interrupt start = %v, want now %v", start, clock.Now())
	}
}

func TestInterruptWithNothingPlayingIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	s, _ := NewScheduler(sink, 24000, newFakeClock())
	s.Interrupt()
	s.Interrupt()
	if sink.flushes != 2 {
		t.Fatalf("flushes = %d, want 2", sink.flushes)
	}
}

func TestActiveTrimsFinishedChunks(t *testing.T) {
	clock := newFakeClock()
	s, _ := NewScheduler(&recordingSink{}, 24000, clock)

	s.Enqueue(pcmOf(20 * time.Millisecond))
	s.Enqueue(pcmOf(20 * time.Millisecond))
	if got := s.Active(); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}

	clock.Advance(30 * time.Millisecond)
	if got := s.Active(); got != 1 {
		t.Fatalf("active after first chunk ended = %d, want 1", got)
	}

	clock.Advance(time.Second)
	if got := s.Active(); got != 0 {
		t.Fatalf("active after drain = %d, want 0", got)
	}
}

func TestEnqueueEmptyChunkIsDropped(t *testing.T) {
	sink := &recordingSink{}
	s, _ := NewScheduler(sink, 24000, newFakeClock())
	if _, err := s.Enqueue(nil); err != nil {
		t.Fatalf("Enqueue(nil): %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("empty chunk reached sink")
	}
	if !s.NextStart().IsZero() {
		t.Fatalf("empty chunk advanced the schedule")
	}
}
