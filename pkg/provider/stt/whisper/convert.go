package whisper

import (
	"encoding/binary"
	"math"
)

const (
	// whisperSampleRate is the only rate whisper.cpp models accept.
	whisperSampleRate = 16000

	// trimLevel is the absolute amplitude below which leading and trailing
	// samples count as silence.
	trimLevel = 0.01

	// trimPad keeps a quarter second around the speech so word onsets
	// survive trimming.
	trimPad = whisperSampleRate / 4
)

// pcm16 is interleaved 16-bit signed little-endian PCM. A trailing partial
// frame is ignored.
type pcm16 struct {
	data     []byte
	channels int
}

func newPCM16(data []byte, channels int) pcm16 {
	return pcm16{data: data, channels: max(channels, 1)}
}

func (p pcm16) frames() int {
	return len(p.data) / (2 * p.channels)
}

// mono returns frame i averaged over its channels, scaled to [-1, 1).
func (p pcm16) mono(i int) float32 {
	var sum float32
	off := i * p.channels * 2
	for ch := range p.channels {
		s := int16(binary.LittleEndian.Uint16(p.data[off+ch*2:]))
		sum += float32(s) / 32768
	}
	return sum / float32(p.channels)
}

// toWhisperSamples down-mixes pcm to mono and linearly resamples it from
// sampleRate to 16 kHz in one pass. A non-positive sampleRate is taken as
// 16 kHz. Speech needs no anti-alias filter here.
func toWhisperSamples(pcm []byte, sampleRate, channels int) []float32 {
	src := newPCM16(pcm, channels)
	n := src.frames()
	if sampleRate <= 0 {
		sampleRate = whisperSampleRate
	}
	if n == 0 {
		return nil
	}
	if sampleRate == whisperSampleRate {
		out := make([]float32, n)
		for i := range out {
			out[i] = src.mono(i)
		}
		return out
	}

	out := make([]float32, int(int64(n)*whisperSampleRate/int64(sampleRate)))
	step := float64(sampleRate) / whisperSampleRate
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		a := src.mono(min(j, n-1))
		b := a
		if j+1 < n {
			b = src.mono(j + 1)
		}
		out[i] = a + (b-a)*float32(pos-float64(j))
	}
	return out
}

// trimSilence drops leading and trailing silence, keeping trimPad samples
// on either side of the first and last audible sample. A recording without
// any audible sample is returned unchanged.
func trimSilence(samples []float32) []float32 {
	loud := func(s float32) bool { return math.Abs(float64(s)) >= trimLevel }

	first := -1
	for i, s := range samples {
		if loud(s) {
			first = i
			break
		}
	}
	if first < 0 {
		return samples
	}
	last := first
	for i := len(samples) - 1; i > first; i-- {
		if loud(samples[i]) {
			last = i
			break
		}
	}
	return samples[max(0, first-trimPad):min(len(samples), last+trimPad+1)]
}
