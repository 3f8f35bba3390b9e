package acquire

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/technosupport/ts-snapscout/internal/device"
)

// FFmpegExtractor shells out to ffmpeg to grab one frame off an RTSP
// stream. TCP transport; UDP loses too many packets on the cheap devices
// that end up on this code path.
type FFmpegExtractor struct {
	Binary  string
	Timeout time.Duration
}

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{Binary: "ffmpeg", Timeout: 30 * time.Second}
}

func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, streamURL string, cred device.Credential, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Binary,
		"-y",
		"-rtsp_transport", "tcp",
		"-i", injectCredentials(streamURL, cred),
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		outputPath,
	)
	// ffmpeg is chatty on stderr; none of it is useful here.
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return err
	}
	fi, err := os.Stat(outputPath)
	if err != nil {
		return errors.New("ffmpeg exited 0 but produced no output")
	}
	if fi.Size() == 0 {
		os.Remove(outputPath)
		return errors.New("ffmpeg produced an empty frame")
	}
	return nil
}

// injectCredentials embeds user:pass into the stream URL, the only
// credential channel RTSP servers universally accept.
func injectCredentials(streamURL string, cred device.Credential) string {
	if cred.Username == "" {
		return streamURL
	}
	u, err := url.Parse(streamURL)
	if err != nil {
		return streamURL
	}
	u.User = url.UserPassword(cred.Username, cred.Password)
	return u.String()
}
