package stt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// BitsPerSample is fixed at 16 for all PCM handled by this package.
	BitsPerSample = 16

	DefaultSampleRate = 16000
)

// EncodeWAV wraps raw 16-bit signed little-endian PCM in a RIFF/WAV
// container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV extracts the PCM payload of a 16-bit PCM WAV file. Chunks other
// than "fmt " and "data" are skipped.
func DecodeWAV(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("stt: not a RIFF/WAVE file")
	}
	var haveFmt bool
	off := 12
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(wav) {
			// Some encoders write a bogus data size when streaming.
			size = len(wav) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("stt: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(wav[body : body+2])
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if format != 1 || bits != BitsPerSample {
				return nil, 0, 0, fmt.Errorf("%w: wav format %d with %d bits", ErrUnsupportedFormat, format, bits)
			}
			channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, errors.New("stt: data chunk before fmt chunk")
			}
			return wav[body : body+size], sampleRate, channels, nil
		}
		off = body + size + size%2
	}
	return nil, 0, 0, errors.New("stt: wav has no data chunk")
}

// PCM returns the recording as raw 16-bit PCM along with its sample rate and
// channel count. Only FormatPCM and FormatWAV can be converted.
func (r Recording) PCM() (pcm []byte, sampleRate, channels int, err error) {
	switch r.Format {
	case FormatPCM:
		sampleRate, channels = r.SampleRate, r.Channels
		if sampleRate <= 0 {
			sampleRate = DefaultSampleRate
		}
		if channels <= 0 {
			channels = 1
		}
		return r.Audio, sampleRate, channels, nil
	case FormatWAV:
		return DecodeWAV(r.Audio)
	}
	return nil, 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, r.Format)
}

// Duration returns the audio length of PCM and WAV recordings, or zero when
// it cannot be determined without decoding.
func (r Recording) Duration() time.Duration {
	pcm, sr, ch, err := r.PCM()
	if err != nil || sr <= 0 || ch <= 0 {
		return 0
	}
	bytesPerSec := sr * ch * BitsPerSample / 8
	return time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSec)
}
