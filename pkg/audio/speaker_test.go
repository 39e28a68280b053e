package audio

import (
	"io"
	"sync"
	"testing"
	"time"
)

// newIdleSpeaker builds a Speaker whose pull path can be exercised
// without an output device: playing is pre-set so Write never asks the
// oto context for a player.
func newIdleSpeaker() *Speaker {
	s := &Speaker{playing: true}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func TestFlushRetiresParkedReader(t *testing.T) {
	s := newIdleSpeaker()
	stale := &playerSource{s: s, gen: 0}

	type result struct {
		n   int
		err error
	}
	got := make(chan result, 1)
	go func() {
		p := make([]byte, 8)
		n, err := stale.Read(p)
		got <- result{n, err}
	}()

	// Give the reader time to park on the empty buffer; if it arrives
	// later the generation check still retires it.
	time.Sleep(20 * time.Millisecond)
	s.Flush()
	if err := s.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case r := <-got:
		if r.n != 0 || r.err != io.EOF {
			t.Fatalf("retired reader got (%d, %v), want (0, EOF)", r.n, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retired reader still blocked after Flush")
	}

	// The chunk written after the interruption must reach the
	// replacement player intact.
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	fresh := &playerSource{s: s, gen: gen}
	p := make([]byte, 8)
	n, err := fresh.Read(p)
	if err != nil || n != 4 || p[0] != 1 || p[3] != 4 {
		t.Fatalf("replacement reader got (%d, %v, % x), want the full post-interruption chunk", n, err, p[:n])
	}
}

func TestFlushDropsPendingAudio(t *testing.T) {
	s := newIdleSpeaker()
	if err := s.Write([]byte{9, 9, 9, 9}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	s.Flush()
	if err := s.Write([]byte{1, 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	src := &playerSource{s: s, gen: gen}
	p := make([]byte, 8)
	n, err := src.Read(p)
	if err != nil || n != 2 || p[0] != 1 || p[1] != 2 {
		t.Fatalf("got (%d, %v, % x), want only the post-flush bytes", n, err, p[:n])
	}
}

func TestReadDrainsSilenceAfterClose(t *testing.T) {
	s := newIdleSpeaker()
	src := &playerSource{s: s, gen: 0}
	s.Close()

	p := []byte{7, 7, 7, 7}
	n, err := src.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read after close: (%d, %v)", n, err)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("byte %d = %d, want silence", i, b)
		}
	}
	if err := s.Write([]byte{1}); err == nil {
		t.Fatal("Write accepted after Close")
	}
}
