package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures mono PCM16 from the default input device and
// delivers it in fixed-size blocks. It implements AudioSource.
type Microphone struct {
	sampleRateHz int
	blockSamples int

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	pending []byte
	onBlock func(pcm []byte)
}

// NewMicrophone prepares a capture device at sampleRateHz delivering
// blockSamples samples per block (DefaultBlockSamples if zero). The
// device is not opened until Start.
func NewMicrophone(sampleRateHz, blockSamples int) (*Microphone, error) {
	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRateHz)
	}
	if blockSamples <= 0 {
		blockSamples = DefaultBlockSamples
	}
	return &Microphone{sampleRateHz: sampleRateHz, blockSamples: blockSamples}, nil
}

// Start opens the device and begins delivering blocks to onBlock from the
// audio thread.
func (m *Microphone) Start(onBlock func(pcm []byte)) error {
	if onBlock == nil {
		return fmt.Errorf("onBlock must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return fmt.Errorf("microphone already started")
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRateHz)
	deviceConfig.PeriodSizeInMilliseconds = 20

	m.onBlock = onBlock
	m.pending = m.pending[:0]

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.accumulate(input)
		},
	}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return fmt.Errorf("init microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return fmt.Errorf("start microphone: %w", err)
	}

	m.ctx = malgoCtx
	m.device = device
	return nil
}

// accumulate buffers device periods until a full block is available, then
// hands each complete block to the consumer. One block of lookahead at
// most; no queue.
func (m *Microphone) accumulate(input []byte) {
	blockBytes := m.blockSamples * 2

	m.mu.Lock()
	onBlock := m.onBlock
	if onBlock == nil {
		m.mu.Unlock()
		return
	}
	m.pending = append(m.pending, input...)
	var blocks [][]byte
	for len(m.pending) >= blockBytes {
		block := make([]byte, blockBytes)
		copy(block, m.pending[:blockBytes])
		m.pending = m.pending[blockBytes:]
		blocks = append(blocks, block)
	}
	m.mu.Unlock()

	for _, block := range blocks {
		onBlock(block)
	}
}

// Stop closes the device and drops any partial block. Safe to call twice.
func (m *Microphone) Stop() {
	m.mu.Lock()
	device := m.device
	ctx := m.ctx
	m.device = nil
	m.ctx = nil
	m.onBlock = nil
	m.pending = nil
	m.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}
}
