package app

import (
	"flag"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/nvr-ai/ssd-video/video"
)

func testApp(t *testing.T) (*cli.App, *logrus.Logger) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	app := New(logger, Devices{})
	app.Writer = &discard{}
	app.ErrWriter = &discard{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, logger
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }

// TestUsage requires exactly one input argument.
func TestUsage(t *testing.T) {
	for _, args := range [][]string{
		{"ssdvideo"},
		{"ssdvideo", "a.mp4", "b.mp4"},
	} {
		app, _ := testApp(t)
		err := app.Run(args)
		require.Error(t, err)

		var exit cli.ExitCoder
		require.ErrorAs(t, err, &exit)
		assert.Equal(t, exitUsage, exit.ExitCode())
	}
}

// TestBadConfig fails before any resource is opened.
func TestBadConfig(t *testing.T) {
	app, _ := testApp(t)
	err := app.Run([]string{"ssdvideo", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "in.mp4"})
	assert.Error(t, err)
}

// TestLoadConfigOverrides applies the flags on top of the file.
func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: ./from-file.avi\nlog_level: warn\n"), 0o600))

	app, _ := testApp(t)
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{
		"--config", path,
		"--model", "/models/ssd.onnx",
		"--log-level", "debug",
		"in.mp4",
	}))

	cfg, err := loadConfig(cli.NewContext(app, set, nil))
	require.NoError(t, err)
	assert.Equal(t, "./from-file.avi", cfg.Output)
	assert.Equal(t, "/models/ssd.onnx", cfg.Detector.ModelPath)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

// TestSourceOpenerDirectory reads a frame directory without OpenCV.
func TestSourceOpenerDirectory(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "frame-1.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	require.NoError(t, f.Close())

	src, err := sourceOpener(dir, 12, nil)()
	require.NoError(t, err)
	defer src.Close()

	_, ok := src.(*video.SequenceSource)
	assert.True(t, ok)
	assert.InDelta(t, 12.0, src.Properties().FPS, 1e-9)
	assert.Equal(t, 8, src.Properties().Width)
}

// TestSourceOpenerCapture hands anything but a directory to the capture device.
func TestSourceOpenerCapture(t *testing.T) {
	var opened string
	capture := func(target string) (video.Source, error) {
		opened = target
		return video.NewMemorySource(25, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	}

	src, err := sourceOpener("0", 0, capture)()
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "0", opened)

	_, err = sourceOpener(filepath.Join(t.TempDir(), "clip.mp4"), 0, nil)()
	assert.ErrorIs(t, err, video.ErrSourceUnavailable)
}

// TestSourceOpenerEmptyDirectory reports the source as unavailable.
func TestSourceOpenerEmptyDirectory(t *testing.T) {
	_, err := sourceOpener(t.TempDir(), 0, nil)()
	assert.ErrorIs(t, err, video.ErrSourceUnavailable)
}
