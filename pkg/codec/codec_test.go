package codec

import (
	"bytes"
	"math/rand"
	"testing"
	"time"
)

func TestBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, n := range []int{0, 1, 2, 3, 64, 4096} {
		b := make([]byte, n)
		rng.Read(b)
		got, err := DecodeBase64(EncodeBytes(b))
		if err != nil {
			t.Fatalf("decode len=%d: %v", n, err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("round trip mismatch at len=%d", n)
		}
	}
}

func TestDecodeBase64Malformed(t *testing.T) {
	if _, err := DecodeBase64("not*base64!"); err == nil {
		t.Fatalf("invalid alphabet accepted")
	}
}

func TestPCM16RoundTripWithinOneUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pcm := make([]byte, 4096*2)
	rng.Read(pcm)

	back := FloatToPCM16(PCM16ToFloat(pcm))
	if len(back) != len(pcm) {
		t.Fatalf("length changed: %d -> %d", len(pcm), len(back))
	}
	for i := 0; i < len(pcm); i += 2 {
		orig := int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		got := int16(uint16(back[i]) | uint16(back[i+1])<<8)
		diff := int32(orig) - int32(got)
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: %d -> %d, beyond one unit of quantization", i/2, orig, got)
		}
	}
}

func TestFloatToPCM16Clips(t *testing.T) {
	out := FloatToPCM16([]float32{2.0, -2.0})
	hi := int16(uint16(out[0]) | uint16(out[1])<<8)
	lo := int16(uint16(out[2]) | uint16(out[3])<<8)
	if hi != 32767 {
		t.Fatalf("positive overflow = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Fatalf("negative overflow = %d, want -32768", lo)
	}
}

func TestPCM16ToFloatRange(t *testing.T) {
	// Extremes of the int16 range map inside [-1, 1).
	pcm := []byte{0x00, 0x80, 0xff, 0x7f} // -32768, 32767
	f := PCM16ToFloat(pcm)
	if f[0] != -1.0 {
		t.Fatalf("min sample = %v, want -1.0", f[0])
	}
	if f[1] >= 1.0 || f[1] <= 0.999 {
		t.Fatalf("max sample = %v, want just below 1.0", f[1])
	}
}

func TestPCMDuration(t *testing.T) {
	// 24kHz mono PCM16: 48000 bytes/s.
	if got := PCMDuration(48000, 24000); got != time.Second {
		t.Fatalf("PCMDuration(48000, 24000) = %v, want 1s", got)
	}
	if got := PCMDuration(960, 24000); got != 20*time.Millisecond {
		t.Fatalf("PCMDuration(960, 24000) = %v, want 20ms", got)
	}
	if got := PCMDuration(0, 24000); got != 0 {
		t.Fatalf("PCMDuration(0) = %v, want 0", got)
	}
}
