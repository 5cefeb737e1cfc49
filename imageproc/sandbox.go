package imageproc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// WorkerCommand is the hidden subcommand hosting the untrusted decoder.
const WorkerCommand = "thumbnail-worker"

// resizeAndPadImage runs the decoder in a child process so a crashing or
// hostile image cannot take down the pipeline. The child writes
// cachePath+".pad" and exits 0 on success, or persists the original bytes as
// cachePath+".failed" and exits non-zero.
func resizeAndPadImage(ctx context.Context, imageBytes []byte, width, height, size int, cachePath string) bool {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		slog.Error("failed to create cache directory", "path", cachePath, "error", err)
		return false
	}

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	cmd := exec.CommandContext(ctx, self, WorkerCommand,
		"--width", strconv.Itoa(width),
		"--height", strconv.Itoa(height),
		"--size", strconv.Itoa(size),
		"--cache-path", cachePath,
	)
	cmd.Stdin = bytes.NewReader(imageBytes)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	return cmd.Run() == nil
}

// RunWorker is the child side of the sandbox protocol: it reads the raw image
// from r, resizes and pads it, and writes the artifact next to cachePath.
func RunWorker(r io.Reader, width, height, size int, cachePath string) error {
	imageBytes, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, err := ResizeAndPad(imageBytes, width, height, size)
	if err != nil {
		// Keep the input around for later inspection.
		if writeErr := os.WriteFile(cachePath+".failed", imageBytes, 0o644); writeErr != nil {
			return fmt.Errorf("persist failed input: %w", writeErr)
		}
		return fmt.Errorf("resize and pad: %w", err)
	}

	if err := os.WriteFile(cachePath+".pad", out, 0o644); err != nil {
		return fmt.Errorf("write padded image: %w", err)
	}
	return nil
}
