package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Speaker is a pull-model Sink on top of an oto player. Writes append to
// an internal buffer; oto drains it on the device clock, so back-to-back
// chunks play gapless.
type Speaker struct {
	otoCtx  *oto.Context
	player  *oto.Player
	buf     []byte
	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	playing bool
	closed  bool
}

// playerSource is the io.Reader handed to one oto player. It carries the
// generation it was created under: after a Flush retires that generation,
// a Read that was parked in cond.Wait must end its stream instead of
// consuming audio meant for the replacement player.
type playerSource struct {
	s   *Speaker
	gen uint64
}

// NewSpeaker opens the output device for mono 16-bit PCM at sampleRateHz.
// At 24kHz mono 16-bit, the 4800-byte device buffer is ~100ms: small
// enough to keep interruption latency low.
func NewSpeaker(sampleRateHz int) (*Speaker, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRateHz,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	})
	if err != nil {
		return nil, fmt.Errorf("open speaker: %w", err)
	}
	<-ready

	s := &Speaker{otoCtx: otoCtx}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write appends PCM to the playback buffer, starting a player on the
// first write after creation or after a flush.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("speaker is closed")
	}
	s.buf = append(s.buf, pcm...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(&playerSource{s: s, gen: s.gen})
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// Read implements io.Reader for oto.Player; oto pulls audio from here.
func (r *playerSource) Read(p []byte) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed && s.gen == r.gen {
		s.cond.Wait()
	}

	if s.gen != r.gen {
		return 0, io.EOF
	}

	if s.closed && len(s.buf) == 0 {
		// Return silence so oto drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush discards all pending audio and retires the current player so the
// next Write starts fresh. Called on an interruption signal.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	// Bump the generation and wake every parked Read: a reader from the
	// retired player must see EOF, not the next session's first chunk.
	s.gen++
	s.cond.Broadcast()

	if s.player == nil || !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	player := s.player
	s.player = nil
	s.mu.Unlock()

	// Pause stops sound immediately; Reset clears oto's internal
	// buffer so stale audio cannot overlap the next chunk.
	player.Pause()
	player.Reset()
	player.Close()
}

// Close releases the device. Further writes fail.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Close()
	}
}
