package live

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/senseihq/sensei-go/pkg/codec"
	"github.com/senseihq/sensei-go/pkg/core"
)

const (
	defaultConnectTimeout = 15 * time.Second

	// DefaultEndpoint is the Gemini Live bidirectional endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio live model this client targets.
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

	// DefaultVoice is the fixed synthesized mentor voice.
	DefaultVoice = "Kore"
)

// ConnectConfig declares the session parameters sent in the setup frame.
type ConnectConfig struct {
	Endpoint     string // defaults to DefaultEndpoint
	APIKey       string
	Model        string // defaults to DefaultModel
	Voice        string // defaults to DefaultVoice
	SystemPrompt string

	// Transcripts for both directions are always requested; the session
	// controller displays them as a rolling caption window.
}

// Transport is the bidirectional channel to the remote model. SendMedia
// pushes one captured chunk; Events yields inbound events in arrival
// order until the channel closes.
type Transport interface {
	SendMedia(mimeType string, data []byte) error
	Events() <-chan Event
	Close() error
	Err() error
}

// WSTransport is the gorilla/websocket Transport implementation.
type WSTransport struct {
	conn *websocket.Conn

	events chan Event
	done   chan struct{}
	stop   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Dial opens a live session: websocket dial, setup frame, and a wait for
// the setup acknowledgement. On success the read loop is running and
// Events() is live.
func Dial(ctx context.Context, cfg ConnectConfig) (*WSTransport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.NewAuthenticationError("api key is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	voice := strings.TrimSpace(cfg.Voice)
	if voice == "" {
		voice = DefaultVoice
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid live endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()
	wsURL := u.String()

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		redacted := endpoint
		if resp != nil {
			if resp.StatusCode == 401 || resp.StatusCode == 403 {
				return nil, core.NewAuthenticationError(fmt.Sprintf("live handshake rejected (status %d)", resp.StatusCode))
			}
			if resp.StatusCode == 429 {
				return nil, core.NewRateLimitError("live session quota exceeded", 0)
			}
			return nil, &core.TransportError{Op: "DIAL", URL: redacted, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &core.TransportError{Op: "DIAL", URL: redacted, Err: err}
	}

	setup := setupMessage{
		Setup: setupPayload{
			Model: model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: voice},
					},
				},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		setup.Setup.SystemInstruction = &content{Parts: []part{{Text: prompt}}}
	}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send live setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, classifyReadError(err, "read setup ack")
	}
	_ = conn.SetReadDeadline(time.Time{})

	events, err := decodeServerFrame(payload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	ack := false
	for _, ev := range events {
		if _, ok := ev.(SetupCompleteEvent); ok {
			ack = true
			break
		}
	}
	if !ack {
		_ = conn.Close()
		return nil, core.NewAPIError("live session setup was not acknowledged")
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Events yields inbound session events in arrival order.
func (t *WSTransport) Events() <-chan Event {
	if t == nil {
		return nil
	}
	return t.events
}

// SendMedia sends one captured chunk as a realtimeInput frame.
func (t *WSTransport) SendMedia(mimeType string, data []byte) error {
	if t == nil {
		return fmt.Errorf("transport must not be nil")
	}
	if t.closed.Load() {
		return fmt.Errorf("live transport is closed")
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{
				MIMEType: mimeType,
				Data:     codec.EncodeBytes(data),
			}},
		},
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

// Close shuts the websocket down. Best effort; safe to call twice.
func (t *WSTransport) Close() error {
	if t == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.stop)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	})
	<-t.done
	return nil
}

// Err returns the terminal transport error, if any, once the session has
// ended.
func (t *WSTransport) Err() error {
	if t == nil {
		return nil
	}
	<-t.done
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *WSTransport) setErr(err error) {
	if err == nil {
		return
	}
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *WSTransport) readLoop() {
	defer close(t.done)
	defer close(t.events)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emitControl(ClosedEvent{Reason: "remote close"})
				return
			}
			if t.closed.Load() {
				return
			}
			t.setErr(classifyReadError(err, "read live frame"))
			t.emitControl(ClosedEvent{Reason: err.Error()})
			return
		}

		events, err := decodeServerFrame(data)
		if err != nil {
			// A single malformed frame is not connection-fatal.
			continue
		}
		for _, ev := range events {
			switch ev.(type) {
			case InterruptedEvent, ClosedEvent:
				t.emitControl(ev)
			default:
				t.emit(ev)
			}
		}
	}
}

// emit delivers a data event without blocking the read loop; a consumer
// that falls a full buffer behind loses data frames.
func (t *WSTransport) emit(ev Event) {
	if ev == nil {
		return
	}
	select {
	case t.events <- ev:
	default:
	}
}

// emitControl delivers interruption and close signals even when the
// buffer is full: dropping one would leave stale audio playing or a
// session that never learns it ended. Blocks until the consumer takes
// the event or the transport is closed.
func (t *WSTransport) emitControl(ev Event) {
	select {
	case t.events <- ev:
	case <-t.stop:
	}
}

// classifyReadError maps websocket failure modes onto the error taxonomy.
// A policy-violation close carrying "Requested entity was not found" is
// how the remote reports an invalidated credential.
func classifyReadError(err error, op string) error {
	if ce, ok := err.(*websocket.CloseError); ok {
		text := ce.Text
		if strings.Contains(text, "Requested entity was not found") || ce.Code == websocket.ClosePolicyViolation {
			return core.NewAuthenticationError(fmt.Sprintf("live session rejected: %s", text))
		}
		if strings.Contains(strings.ToLower(text), "quota") {
			return core.NewRateLimitError(text, 0)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
