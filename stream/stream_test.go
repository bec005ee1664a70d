package stream

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/inference"
	"github.com/nvr-ai/ssd-video/models"
	"github.com/nvr-ai/ssd-video/models/anchors"
	"github.com/nvr-ai/ssd-video/models/model/preprocess"
	"github.com/nvr-ai/ssd-video/render"
	"github.com/nvr-ai/ssd-video/video"
)

const (
	frameW     = 64
	frameH     = 48
	numClasses = 21
	frameTime  = 100 * time.Millisecond
)

// fakeDetector predicts against a flat anchor list and advances the mock clock per frame.
type fakeDetector struct {
	anchors []anchors.Anchor
	scores  []float32
	clock   *clock.Mock
	failAt  int
	onInfer func(call int)
	calls   int
	closed  bool
}

func (d *fakeDetector) Infer(_ context.Context, _ *tensor.Dense) (*inference.Prediction, error) {
	d.calls++
	if d.onInfer != nil {
		d.onInfer(d.calls)
	}
	if d.failAt > 0 && d.calls == d.failAt {
		return nil, errors.New("device lost")
	}
	if d.clock != nil {
		d.clock.Add(frameTime)
	}
	n := len(d.anchors)
	scores := make([]float32, n*numClasses)
	copy(scores, d.scores)
	return &inference.Prediction{
		Scores:  tensor.New(tensor.WithShape(n, numClasses), tensor.WithBacking(scores)),
		Offsets: tensor.New(tensor.WithShape(n, 4), tensor.WithBacking(make([]float32, n*4))),
	}, nil
}

func (d *fakeDetector) Anchors(image.Point) (*anchors.Geometry, error) {
	return anchors.New(d.anchors, nil)
}

func (d *fakeDetector) Close() error {
	d.closed = true
	return nil
}

// trackedSource wraps a source and records its release.
type trackedSource struct {
	video.Source
	closed   bool
	closeErr error
}

func (s *trackedSource) Close() error {
	s.closed = true
	return multierr.Combine(s.Source.Close(), s.closeErr)
}

// rawFileSink appends the raw RGBA pixels of every frame to a file.
type rawFileSink struct {
	f      *os.File
	closed bool
}

func (s *rawFileSink) Write(frame video.Frame) error {
	img, err := frame.Image()
	if err != nil {
		return err
	}
	_, err = s.f.Write(img.(*image.RGBA).Pix)
	return err
}

func (s *rawFileSink) Close() error {
	s.closed = true
	return s.f.Close()
}

type harness struct {
	source    *trackedSource
	frames    []*image.RGBA
	detector  *fakeDetector
	clock     *clock.Mock
	sink      *rawFileSink
	sinkOpens int
	output    string
	logger    *logrus.Logger
	hook      *test.Hook
}

func gradient(i int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: uint8(i * 20), A: 255})
		}
	}
	return img
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewMock(),
		output: filepath.Join(t.TempDir(), "output.avi"),
	}
	imgs := make([]image.Image, n)
	for i := range imgs {
		h.frames = append(h.frames, gradient(i))
		imgs[i] = h.frames[i]
	}
	src, err := video.NewMemorySource(25, imgs...)
	require.NoError(t, err)
	h.source = &trackedSource{Source: src}
	h.detector = &fakeDetector{
		anchors: []anchors.Anchor{{CY: 0.5, CX: 0.5, H: 0.5, W: 0.5}},
		clock:   h.clock,
	}
	h.logger, h.hook = test.NewNullLogger()
	return h
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	prep, err := preprocess.NewPreprocessor(preprocess.GetSSD300Config(), h.logger)
	require.NoError(t, err)
	renderer, err := render.NewRenderer(models.VOCClasses(), render.NewPalette(numClasses, 1))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.OutputPath = h.output
	o, err := New(cfg, Dependencies{
		OpenSource: func() (video.Source, error) { return h.source, nil },
		OpenSink: func(path string, props video.Properties) (video.Sink, error) {
			h.sinkOpens++
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			h.sink = &rawFileSink{f: f}
			return h.sink, nil
		},
		Preparer: prep,
		Detector: h.detector,
		Renderer: renderer,
		Logger:   h.logger,
		Clock:    h.clock,
	})
	require.NoError(t, err)
	return o
}

// TestRun_UnmodifiedFrames runs ten frames with nothing above threshold and expects the
// output to hold the ten frames untouched.
func TestRun_UnmodifiedFrames(t *testing.T) {
	h := newHarness(t, 10)

	stats, err := h.orchestrator(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDrained, stats.State)
	assert.Equal(t, 10, stats.FramesProcessed)
	assert.Equal(t, 10, stats.FramesWritten)
	assert.Equal(t, 0, stats.Detections)
	assert.False(t, stats.SinkSkipped)
	assert.Equal(t, time.Second, stats.Elapsed)
	assert.InDelta(t, 10.0, stats.FPS, 1e-9)
	assert.NoError(t, stats.ReleaseErr)
	assert.True(t, h.source.closed, "source must be released")
	assert.True(t, h.sink.closed, "sink must be released")

	var want bytes.Buffer
	for _, f := range h.frames {
		want.Write(f.Pix)
	}
	got, err := os.ReadFile(h.output)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want.Bytes(), got), "written frames must be unmodified")

	require.NotEmpty(t, stats.Stages)
	assert.Equal(t, StagePrepare, stats.Stages[0].Name)
	assert.Equal(t, int64(10), stats.Stages[0].Count)
}

// TestRun_ExistingOutput processes every frame but never touches a pre-existing output.
func TestRun_ExistingOutput(t *testing.T) {
	h := newHarness(t, 10)
	previous := []byte("previous results")
	require.NoError(t, os.WriteFile(h.output, previous, 0o600))

	stats, err := h.orchestrator(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDrained, stats.State)
	assert.Equal(t, 10, stats.FramesProcessed)
	assert.Equal(t, 0, stats.FramesWritten)
	assert.True(t, stats.SinkSkipped)
	assert.Zero(t, h.sinkOpens, "no sink may be opened over an existing output")

	got, err := os.ReadFile(h.output)
	require.NoError(t, err)
	assert.Equal(t, previous, got)
	assert.True(t, h.source.closed)
}

// TestRun_SourceUnavailable fails before running and creates no output.
func TestRun_SourceUnavailable(t *testing.T) {
	h := newHarness(t, 1)
	o := h.orchestrator(t)
	o.deps.OpenSource = func() (video.Source, error) {
		return nil, errors.New("no such device")
	}

	stats, err := o.Run(context.Background())
	assert.ErrorIs(t, err, video.ErrSourceUnavailable)
	assert.Equal(t, StateFailed, stats.State)
	assert.Zero(t, stats.FramesProcessed)
	assert.Zero(t, stats.FPS)
	assert.Zero(t, h.sinkOpens)
	assert.NoFileExists(t, h.output)
}

// TestRun_InitFailureReports still measures and logs the run when the source never opens.
func TestRun_InitFailureReports(t *testing.T) {
	h := newHarness(t, 1)
	o := h.orchestrator(t)
	start := h.clock.Now()
	o.deps.OpenSource = func() (video.Source, error) {
		h.clock.Add(250 * time.Millisecond)
		return nil, errors.New("no such device")
	}

	stats, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, stats.State)
	assert.Equal(t, start, stats.Start)
	assert.Equal(t, 250*time.Millisecond, stats.Elapsed)
	assert.Zero(t, stats.FPS)

	entry := h.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "FPS: 0.00", entry.Message)
	assert.Equal(t, StateFailed, entry.Data["state"])
}

// TestRun_Detection draws the one car of every frame.
func TestRun_Detection(t *testing.T) {
	h := newHarness(t, 1)
	h.detector.scores = make([]float32, numClasses)
	h.detector.scores[7] = 0.9

	o := h.orchestrator(t)
	sink := &video.MemorySink{}
	o.deps.OpenSink = func(string, video.Properties) (video.Sink, error) { return sink, nil }

	stats, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Detections)
	require.Len(t, sink.Frames, 1)
	assert.True(t, sink.Closed)

	// Box (0.25, 0.25, 0.75, 0.75) maps to x 16..48, y 12..36; the left edge is in the class color.
	palette := render.NewPalette(numClasses, 1)
	assert.Equal(t, palette[7], sink.Frames[0].RGBAAt(16, 30))
	assert.Equal(t, h.frames[0].RGBAAt(30, 30), sink.Frames[0].RGBAAt(30, 30), "box interior is untouched")
}

// TestRun_DetectorFailure fails mid-stream and still releases everything.
func TestRun_DetectorFailure(t *testing.T) {
	h := newHarness(t, 5)
	h.detector.failAt = 3

	stats, err := h.orchestrator(t).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
	assert.Equal(t, StateFailed, stats.State)
	assert.Equal(t, 2, stats.FramesProcessed)
	assert.Equal(t, 2, stats.FramesWritten)
	assert.True(t, h.source.closed)
	assert.True(t, h.sink.closed)
	assert.InDelta(t, 10.0, stats.FPS, 1e-9)
}

// TestRun_UnknownClass surfaces a class outside the label table as a failure.
func TestRun_UnknownClass(t *testing.T) {
	h := newHarness(t, 2)
	h.detector.scores = make([]float32, numClasses)
	h.detector.scores[7] = 0.9

	// A label table that stops at "bottle" cannot name class 7.
	short := &models.OutputClassSet{Style: models.ModelFamilyVOC, Classes: models.PascalVOCClasses.Classes[:6]}
	renderer, err := render.NewRenderer(short, render.NewPalette(6, 1))
	require.NoError(t, err)

	o := h.orchestrator(t)
	o.deps.Renderer = renderer

	stats, err := o.Run(context.Background())
	assert.ErrorIs(t, err, render.ErrUnknownClass)
	assert.Equal(t, StateFailed, stats.State)
	assert.True(t, h.source.closed)
}

// TestRun_ReleaseErrorDoesNotMaskResult records a failed release next to a successful run.
func TestRun_ReleaseErrorDoesNotMaskResult(t *testing.T) {
	h := newHarness(t, 3)
	h.source.closeErr = errors.New("release failed")

	stats, err := h.orchestrator(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDrained, stats.State)
	assert.EqualError(t, stats.ReleaseErr, "release failed")
}

// TestRun_Cancel drains after the frame in flight when the context is cancelled.
func TestRun_Cancel(t *testing.T) {
	h := newHarness(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.detector.onInfer = func(call int) {
		if call == 4 {
			cancel()
		}
	}

	stats, err := h.orchestrator(t).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDrained, stats.State)
	assert.Equal(t, 4, stats.FramesProcessed)
	assert.True(t, h.source.closed)
}

// TestRun_EmptySource reports an undefined rate as zero.
func TestRun_EmptySource(t *testing.T) {
	h := newHarness(t, 0)

	stats, err := h.orchestrator(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDrained, stats.State)
	assert.Zero(t, stats.FramesProcessed)
	assert.Zero(t, stats.FPS)
}

// TestNewValidation requires every collaborator.
func TestNewValidation(t *testing.T) {
	_, err := New(DefaultConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateInit.Terminal())
}
