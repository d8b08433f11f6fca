package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of a canonical PCM WAV header.
const WAVHeaderSize = 44

// Format describes PCM audio stored in a WAV container.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// RecordingFormat is the format every session recording is stored in.
var RecordingFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// ErrNotWAV is returned when a header is not a PCM RIFF/WAVE header.
var ErrNotWAV = errors.New("not a PCM WAV file")

// EncodeWAV wraps raw PCM samples in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte, f Format) []byte {
	dataLen := len(pcm)
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	out := make([]byte, WAVHeaderSize, WAVHeaderSize+dataLen)

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))

	return append(out, pcm...)
}

// ReadWAVHeader reads and validates a canonical 44-byte header from r,
// leaving r positioned at the first sample.
func ReadWAVHeader(r io.Reader) (Format, error) {
	header := make([]byte, WAVHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Format{}, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, ErrNotWAV
	}
	if binary.LittleEndian.Uint16(header[20:22]) != 1 {
		return Format{}, ErrNotWAV
	}
	return Format{
		Channels:      int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(header[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(header[34:36])),
	}, nil
}
