package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"beacon/internal/constants"
)

// FFmpegTranscoder loops the source with -stream_loop and cuts it at the
// requested duration. The container is picked from the destination extension.
type FFmpegTranscoder struct {
	Binary     string
	SampleRate int
	Channels   int
}

func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if binary == "" {
		binary = constants.DefaultFFmpegBinary
	}
	return &FFmpegTranscoder{
		Binary:     binary,
		SampleRate: constants.CallSampleRate,
		Channels:   constants.CallChannels,
	}
}

func (t *FFmpegTranscoder) Extend(ctx context.Context, src, dst string, minDuration time.Duration) error {
	if minDuration <= 0 {
		return fmt.Errorf("ffmpeg loop: invalid duration %s", minDuration)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-stream_loop", "-1",
		"-i", src,
		"-t", strconv.FormatFloat(minDuration.Seconds(), 'f', 3, 64),
		"-vn",
		"-ar", strconv.Itoa(t.SampleRate),
		"-ac", strconv.Itoa(t.Channels),
		dst,
	}
	cmd := exec.CommandContext(ctx, t.Binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg loop: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
