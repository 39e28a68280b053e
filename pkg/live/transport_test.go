package live

import (
	"testing"
	"time"
)

func newBufferedTransport(size int) *WSTransport {
	return &WSTransport{
		events: make(chan Event, size),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

func TestControlEventSurvivesFullBuffer(t *testing.T) {
	tr := newBufferedTransport(2)
	tr.events <- AudioEvent{Data: []byte{1}}
	tr.events <- AudioEvent{Data: []byte{2}}

	delivered := make(chan struct{})
	go func() {
		tr.emitControl(InterruptedEvent{})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("control event fit into a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	// Drain one data frame; the interruption must land right behind
	// the remaining buffered frames instead of being dropped.
	<-tr.events
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("control event lost with a full buffer")
	}

	<-tr.events
	ev := <-tr.events
	if _, ok := ev.(InterruptedEvent); !ok {
		t.Fatalf("got %T, want InterruptedEvent", ev)
	}
}

func TestDataEventDroppedWhenBufferFull(t *testing.T) {
	tr := newBufferedTransport(1)
	tr.events <- AudioEvent{Data: []byte{1}}

	done := make(chan struct{})
	go func() {
		tr.emit(AudioEvent{Data: []byte{2}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full buffer")
	}
}

func TestEmitControlReturnsOnceStopped(t *testing.T) {
	tr := newBufferedTransport(1)
	tr.events <- AudioEvent{Data: []byte{1}}

	done := make(chan struct{})
	go func() {
		tr.emitControl(ClosedEvent{Reason: "bye"})
		close(done)
	}()
	close(tr.stop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitControl blocked after transport stop")
	}
}
