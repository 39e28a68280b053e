// Package capture produces the two outbound media streams of a live
// mentoring session: microphone PCM blocks as fast as the device delivers
// them, and periodic downsampled JPEG camera frames.
package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/senseihq/sensei-go/pkg/core"
)

const (
	// DefaultBlockSamples matches the per-block sample count the session
	// streams to the model (mono PCM16 at 16kHz).
	DefaultBlockSamples = 4096
	// DefaultFrameInterval is how often a camera frame is captured.
	DefaultFrameInterval = time.Second
)

// AudioSource is a continuous microphone capture. Start begins delivering
// fixed-size PCM16 blocks to onBlock until Stop; onBlock must not retain
// the slice past the call.
type AudioSource interface {
	Start(onBlock func(pcm []byte)) error
	Stop()
}

// FrameSource is a camera surface. Frame returns the current frame, or
// nil when the surface is not ready; a not-ready frame is skipped, never
// queued.
type FrameSource interface {
	Start() error
	Frame() image.Image
	Stop()
}

// MediaSink receives serialized capture output, typically the realtime
// transport's send path.
type MediaSink interface {
	SendAudio(pcm []byte) error
	SendFrame(jpeg []byte) error
}

// Options tune a Pipeline.
type Options struct {
	FrameInterval time.Duration
	FrameQuality  int // JPEG quality 1-100
	MaxFrameDim   int // longest side after downsampling
	Logger        *slog.Logger
}

// Pipeline owns one microphone stream and one frame ticker. Both start
// together or not at all, and Stop is idempotent.
type Pipeline struct {
	mic    AudioSource
	camera FrameSource
	sink   MediaSink
	opts   Options
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPipeline wires a microphone and camera to a sink.
func NewPipeline(mic AudioSource, camera FrameSource, sink MediaSink, opts Options) (*Pipeline, error) {
	if mic == nil || camera == nil || sink == nil {
		return nil, fmt.Errorf("mic, camera, and sink must not be nil")
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.FrameQuality <= 0 || opts.FrameQuality > 100 {
		opts.FrameQuality = DefaultFrameQuality
	}
	if opts.MaxFrameDim <= 0 {
		opts.MaxFrameDim = DefaultMaxFrameDim
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{mic: mic, camera: camera, sink: sink, opts: opts, log: log}, nil
}

// Start acquires both devices and begins streaming. If either device
// fails, neither stream is left running and the error is reported
// synchronously as a permission failure.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("capture pipeline already running")
	}

	if err := p.camera.Start(); err != nil {
		return core.NewPermissionError(fmt.Sprintf("camera unavailable: %v", err))
	}
	if err := p.mic.Start(p.onAudioBlock); err != nil {
		p.camera.Stop()
		return core.NewPermissionError(fmt.Sprintf("microphone unavailable: %v", err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.frameLoop(runCtx)
	return nil
}

// Stop halts both streams and releases the devices. Safe to call twice or
// before Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.mic.Stop()
	p.camera.Stop()
}

// Running reports whether the pipeline is live.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) onAudioBlock(pcm []byte) {
	if err := p.sink.SendAudio(pcm); err != nil {
		p.log.Warn("drop audio block", "err", err)
	}
}

func (p *Pipeline) frameLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.captureFrame()
		}
	}
}

func (p *Pipeline) captureFrame() {
	img := p.camera.Frame()
	if img == nil {
		// Surface not ready; skip this tick rather than queue.
		return
	}
	jpegBytes, err := EncodeFrame(img, p.opts.MaxFrameDim, p.opts.FrameQuality)
	if err != nil {
		p.log.Warn("encode frame", "err", err)
		return
	}
	if err := p.sink.SendFrame(jpegBytes); err != nil {
		p.log.Warn("drop frame", "err", err)
	}
}
