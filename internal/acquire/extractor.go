package acquire

import (
	"context"

	"github.com/technosupport/ts-snapscout/internal/device"
)

// FrameExtractor is the side-effecting boundary to the external process
// that turns a live stream into one still image. Implementations must write
// a single decodable frame to outputPath (overwriting any existing file) or
// return an error, must bound their own wall-clock via ctx, and must not
// leave partial output behind on failure.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, streamURL string, cred device.Credential, outputPath string) error
}
