package imageproc

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain doubles as the sandbox child when the test binary is re-executed
// by resizeAndPadImage, mirroring how the real binary dispatches the hidden
// worker subcommand.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == WorkerCommand {
		fs := flag.NewFlagSet(WorkerCommand, flag.ExitOnError)
		width := fs.Int("width", ThumbWidth, "")
		height := fs.Int("height", ThumbHeight, "")
		size := fs.Int("size", ThumbMaxBytes, "")
		cachePath := fs.String("cache-path", "", "")
		fs.Parse(os.Args[2:])

		if err := RunWorker(os.Stdin, *width, *height, *size, *cachePath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestRunWorkerWritesPad(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "abc.jpg")

	err := RunWorker(bytes.NewReader(pngBytes(t, 640, 480)), ThumbWidth, ThumbHeight, ThumbMaxBytes, cachePath)
	require.NoError(t, err)

	pad, err := os.ReadFile(cachePath + ".pad")
	require.NoError(t, err)
	assert.Len(t, pad, ThumbMaxBytes)

	_, err = os.Stat(cachePath + ".failed")
	assert.True(t, os.IsNotExist(err))
}

func TestRunWorkerPersistsFailedInput(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "abc.jpg")
	garbage := []byte("not an image at all")

	err := RunWorker(bytes.NewReader(garbage), ThumbWidth, ThumbHeight, ThumbMaxBytes, cachePath)
	require.Error(t, err)

	failed, err := os.ReadFile(cachePath + ".failed")
	require.NoError(t, err)
	assert.Equal(t, garbage, failed)

	_, err = os.Stat(cachePath + ".pad")
	assert.True(t, os.IsNotExist(err))
}

func TestResizeAndPadImageSandbox(t *testing.T) {
	dir := t.TempDir()

	t.Run("success exits zero and writes pad", func(t *testing.T) {
		cachePath := filepath.Join(dir, "good.jpg")
		ok := resizeAndPadImage(context.Background(), pngBytes(t, 320, 240), ThumbWidth, ThumbHeight, ThumbMaxBytes, cachePath)
		require.True(t, ok)

		pad, err := os.ReadFile(cachePath + ".pad")
		require.NoError(t, err)
		assert.Len(t, pad, ThumbMaxBytes)
	})

	t.Run("decoder failure is contained", func(t *testing.T) {
		cachePath := filepath.Join(dir, "bad.jpg")
		ok := resizeAndPadImage(context.Background(), []byte("hostile bytes"), ThumbWidth, ThumbHeight, ThumbMaxBytes, cachePath)
		assert.False(t, ok)

		// The original bytes are kept for inspection; no pad artifact exists.
		_, err := os.Stat(cachePath + ".failed")
		assert.NoError(t, err)
		_, err = os.Stat(cachePath + ".pad")
		assert.True(t, os.IsNotExist(err))
	})
}
