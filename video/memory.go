package video

import (
	"image"
	"image/draw"
	"io"

	"github.com/pkg/errors"
)

// MemorySource replays in-memory images as frames. Each Read returns a fresh copy so
// drawing on a frame never alters the source.
type MemorySource struct {
	frames []*image.RGBA
	props  Properties
	next   int
	closed bool
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource builds a source over imgs. Every image must have the size of the first.
func NewMemorySource(fps float64, imgs ...image.Image) (*MemorySource, error) {
	s := &MemorySource{props: Properties{FPS: fps}}
	for i, img := range imgs {
		size := img.Bounds().Size()
		if i == 0 {
			s.props.Width, s.props.Height = size.X, size.Y
		} else if size.X != s.props.Width || size.Y != s.props.Height {
			return nil, errors.Errorf("image %d is %v, want %dx%d", i, size, s.props.Width, s.props.Height)
		}
		s.frames = append(s.frames, toRGBA(img))
	}
	return s, nil
}

// Read returns a copy of the next image, or io.EOF.
func (s *MemorySource) Read() (Frame, error) {
	if s.closed {
		return nil, errors.New("source is closed")
	}
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	img := toRGBA(s.frames[s.next])
	s.next++
	return NewRGBAFrame(img), nil
}

// Properties returns the stream dimensions.
func (s *MemorySource) Properties() Properties {
	return s.props
}

// Close releases the source.
func (s *MemorySource) Close() error {
	s.closed = true
	return nil
}

// MemorySink keeps a copy of every frame written to it.
type MemorySink struct {
	Frames []*image.RGBA
	Closed bool
}

var _ Sink = (*MemorySink)(nil)

// Write copies the frame pixels.
func (s *MemorySink) Write(frame Frame) error {
	if s.Closed {
		return errors.New("sink is closed")
	}
	img, err := frame.Image()
	if err != nil {
		return errors.Wrap(err, "failed to read frame")
	}
	s.Frames = append(s.Frames, toRGBA(img))
	return nil
}

// Close marks the sink closed.
func (s *MemorySink) Close() error {
	s.Closed = true
	return nil
}

// toRGBA returns a copy of img as an *image.RGBA anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
