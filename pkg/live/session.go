package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the session controller lifecycle state.
type State string

const (
	StateStandby    State = "STANDBY"
	StateConnecting State = "CONNECTING"
	StateActive     State = "ACTIVE"
	StateClosed     State = "CLOSED"
)

// DefaultTranscriptWindow bounds the rolling caption buffer.
const DefaultTranscriptWindow = 6

// Playback is the controller's view of the audio playback scheduler.
// *audio.Scheduler satisfies it.
type Playback interface {
	Enqueue(pcm []byte) (start time.Time, err error)
	Interrupt()
}

// CapturePipeline is the controller's view of the capture pipeline.
type CapturePipeline interface {
	Start(ctx context.Context) error
	Stop()
}

// Dialer opens the transport. Injected so the controller is testable
// without a live backend.
type Dialer func(ctx context.Context) (Transport, error)

// Effect is an action the controller performs in response to an inbound
// event. dispatch is pure; the controller executes the effects.
type Effect int

const (
	EffectPlayAudio Effect = iota
	EffectAppendTranscript
	EffectInterruptPlayback
	EffectTeardown
)

// dispatch maps (state, event) to the next state and the effects to run.
// Events arriving outside ACTIVE are dropped: they belong to a session
// that is already torn down or not yet wired.
func dispatch(state State, ev Event) (State, []Effect) {
	if state != StateActive {
		return state, nil
	}
	switch ev.(type) {
	case AudioEvent:
		return state, []Effect{EffectPlayAudio}
	case TranscriptEvent:
		return state, []Effect{EffectAppendTranscript}
	case InterruptedEvent:
		return state, []Effect{EffectInterruptPlayback}
	case ClosedEvent:
		return StateClosed, []Effect{EffectTeardown}
	default:
		// SetupComplete, TurnComplete, Unknown: nothing to do.
		return state, nil
	}
}

// ControllerOptions tune a session controller.
type ControllerOptions struct {
	TranscriptWindow int
	Metrics          *Metrics
	Logger           *slog.Logger
}

// Controller owns one realtime mentoring session: it opens the transport,
// starts the capture pipeline, routes inbound events to playback and the
// transcript window, and tears everything down exactly once.
//
// The controller itself is the capture pipeline's MediaSink: captured
// audio blocks and frames flow through SendAudio/SendFrame onto the
// transport.
type Controller struct {
	dial     Dialer
	pipeline CapturePipeline
	playback Playback
	opts     ControllerOptions
	log      *slog.Logger

	mu         sync.Mutex
	state      State
	transport  Transport
	transcript []string
	err        error

	stopOnce sync.Once
	done     chan struct{}
}

// NewController wires a dialer, capture pipeline, and playback scheduler
// into a controller in STANDBY.
func NewController(dial Dialer, pipeline CapturePipeline, playback Playback, opts ControllerOptions) (*Controller, error) {
	if dial == nil {
		return nil, fmt.Errorf("dialer must not be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("capture pipeline must not be nil")
	}
	if playback == nil {
		return nil, fmt.Errorf("playback must not be nil")
	}
	if opts.TranscriptWindow <= 0 {
		opts.TranscriptWindow = DefaultTranscriptWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		dial:     dial,
		pipeline: pipeline,
		playback: playback,
		opts:     opts,
		log:      opts.Logger,
		state:    StateStandby,
		done:     make(chan struct{}),
	}, nil
}

// Start transitions STANDBY → CONNECTING → ACTIVE: opens the transport,
// then starts the capture pipeline. Any failure leaves the controller
// CLOSED with nothing running.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStandby {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start session from state %s", state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	transport, err := c.dial(ctx)
	if err != nil {
		c.failStart(fmt.Errorf("open live transport: %w", err))
		return err
	}

	// Stop may have run while the dial was in flight; it already moved
	// the state off CONNECTING, so nothing started here may survive.
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		_ = transport.Close()
		return fmt.Errorf("session stopped before connect completed")
	}
	c.mu.Unlock()

	if err := c.pipeline.Start(ctx); err != nil {
		_ = transport.Close()
		c.failStart(err)
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		c.pipeline.Stop()
		_ = transport.Close()
		return fmt.Errorf("session stopped before start completed")
	}
	c.transport = transport
	c.state = StateActive
	c.mu.Unlock()

	if m := c.opts.Metrics; m != nil {
		m.SessionsTotal.Inc()
		m.SessionsActive.Inc()
	}
	c.log.Info("live session active")

	go c.eventLoop(transport)
	return nil
}

func (c *Controller) failStart(err error) {
	c.mu.Lock()
	c.state = StateClosed
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Controller) eventLoop(transport Transport) {
	for ev := range transport.Events() {
		c.mu.Lock()
		next, effects := dispatch(c.state, ev)
		c.state = next
		c.mu.Unlock()

		for _, effect := range effects {
			c.apply(effect, ev)
		}
	}

	if err := transport.Err(); err != nil {
		c.recordErr(err)
		c.log.Warn("live session ended with error", "err", err)
	}
	c.Stop()
}

func (c *Controller) apply(effect Effect, ev Event) {
	switch effect {
	case EffectPlayAudio:
		audio, ok := ev.(AudioEvent)
		if !ok {
			return
		}
		if _, err := c.playback.Enqueue(audio.Data); err != nil {
			// Dropped audio is not connection-fatal.
			c.log.Warn("drop playback chunk", "err", err)
			return
		}
		if m := c.opts.Metrics; m != nil {
			m.ChunksPlayed.Inc()
		}
	case EffectAppendTranscript:
		line, ok := ev.(TranscriptEvent)
		if !ok {
			return
		}
		c.appendTranscript(line)
	case EffectInterruptPlayback:
		c.playback.Interrupt()
		if m := c.opts.Metrics; m != nil {
			m.Interruptions.Inc()
		}
	case EffectTeardown:
		c.Stop()
	}
}

func (c *Controller) appendTranscript(line TranscriptEvent) {
	speaker := "Sensei"
	if line.Source == TranscriptInput {
		speaker = "You"
	}
	entry := fmt.Sprintf("%s: %s", speaker, strings.TrimSpace(line.Text))

	c.mu.Lock()
	c.transcript = append(c.transcript, entry)
	if over := len(c.transcript) - c.opts.TranscriptWindow; over > 0 {
		c.transcript = append(c.transcript[:0], c.transcript[over:]...)
	}
	c.mu.Unlock()
}

// Stop tears the session down: capture timers and devices first, then the
// transport (best effort). Safe from any state and safe to call twice.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		wasActive := c.state == StateActive
		c.state = StateClosed
		transport := c.transport
		c.mu.Unlock()

		c.pipeline.Stop()
		if transport != nil {
			_ = transport.Close()
		}
		if wasActive {
			if m := c.opts.Metrics; m != nil {
				m.SessionsActive.Dec()
			}
		}
		c.log.Info("live session closed")
		close(c.done)
	})
}

// Done is closed when the session has fully torn down.
func (c *Controller) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal session error, if any. Check
// core.IsAuthInvalidated on it to decide whether the caller must
// re-authenticate before starting a new session.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) recordErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Transcript returns a snapshot of the rolling caption window, oldest
// first.
func (c *Controller) Transcript() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.transcript...)
}

// SendAudio implements capture.MediaSink: one microphone PCM block to the
// transport.
func (c *Controller) SendAudio(pcm []byte) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}
	if err := transport.SendMedia(MIMEAudioPCM16k, pcm); err != nil {
		return err
	}
	if m := c.opts.Metrics; m != nil {
		m.AudioBlocksSent.Inc()
	}
	return nil
}

// SendFrame implements capture.MediaSink: one JPEG camera frame to the
// transport.
func (c *Controller) SendFrame(jpeg []byte) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}
	if err := transport.SendMedia(MIMEImageJPEG, jpeg); err != nil {
		return err
	}
	if m := c.opts.Metrics; m != nil {
		m.FramesSent.Inc()
	}
	return nil
}

func (c *Controller) activeTransport() (Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.transport == nil {
		return nil, fmt.Errorf("session is not active")
	}
	return c.transport, nil
}
