package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/logging"
)

const presignTTL = 5 * time.Minute

// Presigner hands out temporary read URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type runFunc func(ctx context.Context, path string, args []string, stdin io.Reader) ([]byte, error)

// VideoExtractor grabs the first frame with ffmpeg and inspects it as an image.
type VideoExtractor struct {
	ffmpeg    string
	presigner Presigner
	frames    Extractor
	run       runFunc
	logger    logging.Logger
}

func NewVideoExtractor(ffmpegPath string, presigner Presigner, frames Extractor, logger logging.Logger) *VideoExtractor {
	return &VideoExtractor{
		ffmpeg:    ffmpegPath,
		presigner: presigner,
		frames:    frames,
		run:       runCommand,
		logger:    logger.With("module", "media_video"),
	}
}

func (v *VideoExtractor) Extract(ctx context.Context, src Source, opts Options) (*Info, error) {
	input := "pipe:0"
	var stdin io.Reader
	if len(src.Data) > 0 {
		stdin = bytes.NewReader(src.Data)
	} else {
		if src.Key == "" {
			return nil, errors.New("video source has neither data nor key")
		}
		u, err := v.presigner.PresignGet(ctx, src.Key, presignTTL)
		if err != nil {
			return nil, err
		}
		input = u
	}

	args := []string{"-v", "error", "-i", input, "-frames:v", "1", "-f", "image2pipe", "-vcodec", "png", "-"}
	frame, err := v.run(ctx, v.ffmpeg, args, stdin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if len(frame) == 0 {
		v.logger.Warn(ctx, "ffmpeg produced no frame", "key", src.Key)
		return &Info{}, nil
	}

	return v.frames.Extract(ctx, Source{Data: frame, Type: "image/png"}, opts)
}

func runCommand(ctx context.Context, path string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
