// SPDX-License-Identifier: MIT
package engine

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "opentune/internal/log"
)

// RenderToWAV bounces the timeline offline: it renders from position 0 for
// the given duration, block by block, through the exact scheduler path live
// playback uses, so the bounce is bit-identical to what the device would
// have received. The output stream must not be running.
func (e *Engine) RenderToWAV(path string, seconds float64) error {
	if e.running.Load() {
		return fmt.Errorf("cannot render offline while the output stream is running")
	}
	if seconds <= 0 {
		return fmt.Errorf("render duration must be positive, got %.2fs", seconds)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.drainLocked()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	channels := e.cfg.Audio.Channels
	sampleRate := int(e.cfg.Audio.SampleRate)
	enc := wav.NewEncoder(file, sampleRate, recorderBitDepth, channels, 1)

	block := e.cfg.Audio.BlockSize
	sampleBuf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, block*channels),
	}

	e.tl.Seek(0)
	e.tl.Play()

	total := int(seconds * e.cfg.Audio.SampleRate)
	for done := 0; done < total; {
		n := total - done
		if n > block {
			n = block
		}
		e.renderInto(n)
		if err := writeBlock(enc, sampleBuf, e.mix, n, channels); err != nil {
			e.tl.Stop()
			enc.Close()
			file.Close()
			return fmt.Errorf("render write failed: %w", err)
		}
		done += n
	}

	e.tl.Stop()
	e.tl.Seek(0)
	e.publishSnapshot()

	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize render: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}

	applog.Infof("Rendered %.2fs to %s (%d Hz, %d ch)", seconds, path, sampleRate, channels)
	return nil
}

// writeBlock interleaves planar float64 channels into the shared IntBuffer
// and hands it to the encoder.
func writeBlock(enc *wav.Encoder, buf *audio.IntBuffer, planar [][]float64, frames, channels int) error {
	const scale = 1 << (recorderBitDepth - 1)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			v := planar[ch%len(planar)][f]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			buf.Data[f*channels+ch] = int(v * (scale - 1))
		}
	}
	buf.Data = buf.Data[:frames*channels]
	err := enc.Write(buf)
	buf.Data = buf.Data[:cap(buf.Data)]
	return err
}
