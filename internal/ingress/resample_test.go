package ingress

import (
	"encoding/binary"
	"testing"
)

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

func TestResample8to16DoublesLength(t *testing.T) {
	input := samplesToBytes([]int16{100, 200, 300, 400})
	output := resample8to16(input)

	if len(output) != len(input)*2 {
		t.Errorf("expected %d bytes, got %d", len(input)*2, len(output))
	}
}

func TestResample8to16Interpolates(t *testing.T) {
	input := samplesToBytes([]int16{0, 100, 200})
	got := bytesToSamples(resample8to16(input))

	expected := []int16{0, 50, 100, 150, 200, 200}
	if len(got) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResample8to16NegativeSamples(t *testing.T) {
	input := samplesToBytes([]int16{-100, 100})
	got := bytesToSamples(resample8to16(input))

	expected := []int16{-100, 0, 100, 100}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResample8to16Empty(t *testing.T) {
	if out := resample8to16(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(out))
	}
}
