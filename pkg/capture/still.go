package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// StillImage is a FrameSource backed by a single image file, for hosts
// without a camera device: the same frame is offered on every tick.
type StillImage struct {
	path string

	mu  sync.Mutex
	img image.Image
}

// NewStillImage creates a frame source for the image at path. The file is
// decoded on Start.
func NewStillImage(path string) *StillImage {
	return &StillImage{path: path}
}

func (s *StillImage) Start() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open frame image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode frame image: %w", err)
	}

	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
	return nil
}

func (s *StillImage) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

func (s *StillImage) Stop() {
	s.mu.Lock()
	s.img = nil
	s.mu.Unlock()
}
