// Package codec holds the pure byte-level conversions used on both sides
// of the realtime transport: base64 framing and 16-bit little-endian PCM
// to float32 sample conversion.
package codec

import (
	"encoding/base64"
	"fmt"
	"time"
)

// EncodeBytes encodes raw bytes as standard base64.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes a standard base64 string. Input outside the base64
// alphabet yields an error; callers treat that as a malformed frame.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed base64 input: %w", err)
	}
	return b, nil
}

// PCM16ToFloat converts little-endian 16-bit PCM to float32 samples in
// [-1, 1). A trailing odd byte is ignored.
func PCM16ToFloat(b []byte) []float32 {
	n := len(b) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(s) / 32768.0
	}
	return out
}

// FloatToPCM16 converts float32 samples to little-endian 16-bit PCM by
// linear scaling with truncation. No dithering; the conversion is a
// bounded lossy step. Samples outside [-1, 1] are clipped.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := int32(f * 32768.0)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		s := int16(v)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// PCMDuration returns the playback duration of a mono 16-bit PCM buffer
// at the given sample rate.
func PCMDuration(byteLen, sampleRateHz int) time.Duration {
	if byteLen <= 0 || sampleRateHz <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRateHz)
}
