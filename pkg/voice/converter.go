package voice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Converter rewrites an audio container into one the transcription API
// accepts. Voice memos arrive as CAF, which Whisper rejects.
type Converter interface {
	Convert(ctx context.Context, src string) (dst string, cleanup func(), err error)
}

// passthroughExt lists containers the transcription endpoints take as-is.
var passthroughExt = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".ogg": true, ".webm": true, ".mp4": true,
}

type FFmpegConverter struct {
	Binary  string
	TempDir string
}

func NewFFmpegConverter(binary, tempDir string) *FFmpegConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConverter{Binary: binary, TempDir: tempDir}
}

func (c *FFmpegConverter) Convert(ctx context.Context, src string) (string, func(), error) {
	if passthroughExt[strings.ToLower(filepath.Ext(src))] {
		return src, func() {}, nil
	}

	out, err := os.CreateTemp(c.TempDir, "chatpilot-audio-*.mp3")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	dst := out.Name()
	out.Close()
	cleanup := func() { _ = os.Remove(dst) }

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, "-y", "-loglevel", "error", "-i", src, "-ac", "1", "-ar", "16000", dst)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to convert %s: %w: %s", filepath.Base(src), err, strings.TrimSpace(stderr.String()))
	}
	return dst, cleanup, nil
}
