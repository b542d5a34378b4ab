// SPDX-License-Identifier: MIT
// Package testutil provides signal generators and transport doubles shared
// by the engine's tests.
package testutil

import "math"

// MockTransport records everything sent through it for later inspection.
type MockTransport struct {
	Sent []any
}

func (m *MockTransport) Send(data any) error {
	m.Sent = append(m.Sent, data)
	return nil
}

func (m *MockTransport) Close() error { return nil }

// SineWave fills a new buffer with a sine at the given frequency.
func SineWave(size int, sampleRate, frequency float64) []float64 {
	buf := make([]float64, size)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = math.Sin(2 * math.Pi * frequency * t)
	}
	return buf
}

// ComplexWave fills a new buffer with a 440Hz fundamental plus harmonics.
func ComplexWave(size int, sampleRate float64) []float64 {
	buf := make([]float64, size)
	for i := range buf {
		t := float64(i) / sampleRate
		buf[i] = math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
	}
	return buf
}

// AllZero reports whether every sample in buf is exactly zero.
func AllZero(buf []float64) bool {
	for _, s := range buf {
		if s != 0 {
			return false
		}
	}
	return true
}

// Peak returns the largest absolute sample value in buf.
func Peak(buf []float64) float64 {
	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
