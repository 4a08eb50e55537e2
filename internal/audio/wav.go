// Package audio handles PCM codec utilities, voice-activity analysis,
// device discovery, and capture streams.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// SampleRate is the fixed capture rate for the whole pipeline.
	SampleRate = 16000
	// Channels is always mono end to end.
	Channels = 1

	wavHeaderSize = 44
	bitsPerSample = 16
)

// WAVFromPCM wraps raw little-endian s16 PCM bytes in a RIFF/WAVE container.
func WAVFromPCM(pcm []byte, sampleRate int, channels int) []byte {
	out := make([]byte, 0, wavHeaderSize+len(pcm))
	out = append(out, wavHeader(len(pcm), sampleRate, channels)...)
	return append(out, pcm...)
}

// PCMFromWAV strips a 44-byte RIFF header, returning the raw PCM payload.
func PCMFromWAV(wav []byte) ([]byte, error) {
	if len(wav) < wavHeaderSize {
		return nil, fmt.Errorf("wav payload too short: %d bytes", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE payload")
	}
	if string(wav[36:40]) != "data" {
		return nil, fmt.Errorf("unsupported wav layout: data chunk not at byte 36")
	}
	declared := binary.LittleEndian.Uint32(wav[40:44])
	pcm := wav[wavHeaderSize:]
	if int(declared) > len(pcm) {
		return nil, fmt.Errorf("wav data chunk declares %d bytes, have %d", declared, len(pcm))
	}
	return pcm[:declared], nil
}

// WriteWAV streams a RIFF header followed by PCM to w without buffering the payload.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if _, err := w.Write(wavHeader(len(pcm), sampleRate, channels)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}
	return nil
}

// Duration converts a sample count at a given rate into wall time.
func Duration(sampleCount int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(sampleCount) * time.Second / time.Duration(sampleRate)
}

// wavHeader builds the canonical 44-byte PCM header.
func wavHeader(payloadLen int, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+payloadLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(payloadLen))
	return header
}

// SamplesFromBytes decodes little-endian s16 PCM bytes into samples.
func SamplesFromBytes(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}
