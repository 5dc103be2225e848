package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"
)

// WAVLooper extends uncompressed PCM WAV files by repeating their data chunk.
// It is the transcoder used when ffmpeg is not installed.
type WAVLooper struct{}

type wavFile struct {
	format     []byte
	data       []byte
	byteRate   uint32
	blockAlign uint16
}

func (w *wavFile) duration() time.Duration {
	if w.byteRate == 0 {
		return 0
	}
	return time.Duration(float64(len(w.data)) / float64(w.byteRate) * float64(time.Second))
}

func (WAVLooper) Extend(ctx context.Context, src, dst string, minDuration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := readWAVFile(src)
	if err != nil {
		return err
	}
	if len(in.data) == 0 {
		return fmt.Errorf("wav loop: %s has no audio data", src)
	}

	target := int(math.Ceil(minDuration.Seconds() * float64(in.byteRate)))
	if align := int(in.blockAlign); align > 1 && target%align != 0 {
		target += align - target%align
	}
	if target < len(in.data) {
		target = len(in.data)
	}

	looped := make([]byte, 0, target)
	for len(looped) < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := target - len(looped)
		if remaining >= len(in.data) {
			looped = append(looped, in.data...)
		} else {
			looped = append(looped, in.data[:remaining]...)
		}
	}

	return os.WriteFile(dst, encodeWAV(in.format, looped), 0o644)
}

// WAVDuration reports the playing time of a PCM WAV file.
func WAVDuration(path string) (time.Duration, error) {
	w, err := readWAVFile(path)
	if err != nil {
		return 0, err
	}
	return w.duration(), nil
}

// EncodePCM builds a 16-bit PCM WAV file from interleaved samples.
func EncodePCM(sampleRate, channels int, samples []int16) []byte {
	format := make([]byte, 16)
	blockAlign := channels * 2
	binary.LittleEndian.PutUint16(format[0:], 1)
	binary.LittleEndian.PutUint16(format[2:], uint16(channels))
	binary.LittleEndian.PutUint32(format[4:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(format[8:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(format[12:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(format[14:], 16)

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return encodeWAV(format, data)
}

func readWAVFile(path string) (*wavFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return parseWAV(b)
}

func parseWAV(b []byte) (*wavFile, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("parse wav: not a RIFF/WAVE file")
	}

	out := &wavFile{}
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		start := off + 8
		end := start + size
		if end > len(b) {
			end = len(b)
		}

		switch id {
		case "fmt ":
			out.format = append([]byte(nil), b[start:end]...)
		case "data":
			out.data = b[start:end]
		}

		off = end + size%2
	}

	if len(out.format) < 16 {
		return nil, fmt.Errorf("parse wav: missing fmt chunk")
	}
	if out.data == nil {
		return nil, fmt.Errorf("parse wav: missing data chunk")
	}
	if audioFormat := binary.LittleEndian.Uint16(out.format[0:2]); audioFormat != 1 && audioFormat != 0xFFFE {
		return nil, fmt.Errorf("parse wav: unsupported encoding %d", audioFormat)
	}

	out.byteRate = binary.LittleEndian.Uint32(out.format[8:12])
	out.blockAlign = binary.LittleEndian.Uint16(out.format[12:14])
	if out.byteRate == 0 {
		return nil, fmt.Errorf("parse wav: zero byte rate")
	}
	return out, nil
}

func encodeWAV(format, data []byte) []byte {
	var buf bytes.Buffer
	pad := len(data) % 2

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(format)+8+len(data)+pad))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(format)))
	buf.Write(format)

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	if pad == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
