// Package audio plays back the model's PCM stream: arbitrarily chunked
// buffers in arrival order, gapless against a live output clock, with an
// interruption path that cuts everything immediately.
package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/senseihq/sensei-go/pkg/codec"
)

// Clock abstracts the realtime clock so scheduling math is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}

// Sink receives scheduled PCM. Write appends to the playback buffer and
// must not block on the device; Flush drops everything buffered and stops
// the in-flight chunk (stopping an already-finished chunk is a no-op).
type Sink interface {
	Write(pcm []byte) error
	Flush()
}

// Scheduler sequences incoming PCM chunks onto a Sink. Each chunk starts
// at max(nextStartTime, now); nextStartTime then advances by the chunk's
// duration, so chunk starts are non-decreasing and never overlap.
type Scheduler struct {
	clock Clock
	sink  Sink
	rate  int

	mu        sync.Mutex
	nextStart time.Time
	ends      []time.Time // scheduled end times of in-flight chunks
}

// NewScheduler creates a scheduler for mono 16-bit PCM at sampleRateHz.
func NewScheduler(sink Sink, sampleRateHz int, clock Clock) (*Scheduler, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRateHz)
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{clock: clock, sink: sink, rate: sampleRateHz}, nil
}

// Enqueue schedules pcm for playback and returns its computed start time.
// Empty chunks are dropped.
func (s *Scheduler) Enqueue(pcm []byte) (time.Time, error) {
	if s == nil {
		return time.Time{}, fmt.Errorf("scheduler must not be nil")
	}
	if len(pcm) == 0 {
		return time.Time{}, nil
	}

	s.mu.Lock()
	now := s.clock.Now()
	start := now
	if s.nextStart.After(start) {
		start = s.nextStart
	}
	dur := codec.PCMDuration(len(pcm), s.rate)
	s.nextStart = start.Add(dur)
	s.trimFinishedLocked(now)
	s.ends = append(s.ends, s.nextStart)
	s.mu.Unlock()

	if err := s.sink.Write(pcm); err != nil {
		return time.Time{}, fmt.Errorf("write playback chunk: %w", err)
	}
	return start, nil
}

// Interrupt stops every in-flight chunk, drops anything buffered, and
// resets the schedule so the next chunk starts immediately instead of at
// a stale future time. Safe to call at any point, including with nothing
// playing.
func (s *Scheduler) Interrupt() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.nextStart = time.Time{}
	s.ends = s.ends[:0]
	s.mu.Unlock()
	s.sink.Flush()
}

// Active returns the number of chunks currently scheduled or playing.
func (s *Scheduler) Active() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trimFinishedLocked(s.clock.Now())
	return len(s.ends)
}

// NextStart exposes the current tail of the schedule. Zero means the next
// chunk starts as soon as it arrives.
func (s *Scheduler) NextStart() time.Time {
	if s == nil {
		return time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

func (s *Scheduler) trimFinishedLocked(now time.Time) {
	i := 0
	for i < len(s.ends) && !s.ends[i].After(now) {
		i++
	}
	if i > 0 {
		s.ends = append(s.ends[:0], s.ends[i:]...)
	}
}
