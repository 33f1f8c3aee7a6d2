package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// VideoComposer turns narration audio plus a caption into a simple titled
// video via ffmpeg.
type VideoComposer struct {
	ffmpegPath string
}

func NewVideoComposer(ffmpegPath string) *VideoComposer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &VideoComposer{ffmpegPath: ffmpegPath}
}

// ComposeVideo renders audio over a static captioned background and returns
// the mp4 bytes. The work happens in a temp dir that is always cleaned up.
func (c *VideoComposer) ComposeVideo(ctx context.Context, audio []byte, caption string) ([]byte, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio to compose")
	}

	dir, err := os.MkdirTemp("", "atlasbrief-video-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	audioPath := filepath.Join(dir, "narration.mp3")
	if err := os.WriteFile(audioPath, audio, 0644); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	outPath := filepath.Join(dir, "report.mp4")

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", "color=c=0x101828:s=1280x720:r=25",
		"-i", audioPath,
		"-vf", fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=42:x=(w-text_w)/2:y=(h-text_h)/2", escapeDrawtext(caption)),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 400))
	}

	video, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read composed video: %w", err)
	}
	if len(video) == 0 {
		return nil, fmt.Errorf("ffmpeg produced empty output")
	}
	return video, nil
}

func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	return s
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
