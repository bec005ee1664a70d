package video

import (
	"image"
	_ "image/jpeg" // decoders for sequence frames
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ssd-video/util"
)

// DefaultSequenceFPS is the rate reported for image sequences.
const DefaultSequenceFPS = 30

// SequenceSource reads a directory of numbered frame images ("frame-<n>.jpg") in order.
type SequenceSource struct {
	files []util.ImageFile
	props Properties
	next  int
}

var _ Source = (*SequenceSource)(nil)

// OpenSequence lists the frames of dir and probes the size of the first one.
//
// Returns:
//   - *SequenceSource: The source.
//   - error: ErrSourceUnavailable if the directory holds no readable frame.
func OpenSequence(dir string, fps float64) (*SequenceSource, error) {
	files, err := util.ListDirectoryImageFiles(dir)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrSourceUnavailable, "no frame images in %s", dir)
	}

	cfg, err := decodeConfig(files[0].Path)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	if fps <= 0 {
		fps = DefaultSequenceFPS
	}

	return &SequenceSource{
		files: files,
		props: Properties{Width: cfg.Width, Height: cfg.Height, FPS: fps},
	}, nil
}

// Read decodes the next frame, or returns io.EOF.
func (s *SequenceSource) Read() (Frame, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	file := s.files[s.next]
	s.next++

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open frame %d", file.Frame)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode frame %d", file.Frame)
	}
	if size := img.Bounds().Size(); size.X != s.props.Width || size.Y != s.props.Height {
		return nil, errors.Errorf("frame %d is %v, want %dx%d", file.Frame, size, s.props.Width, s.props.Height)
	}
	return NewRGBAFrame(toRGBA(img)), nil
}

// Properties returns the size of the first frame and the configured rate.
func (s *SequenceSource) Properties() Properties {
	return s.props
}

// Close releases the source.
func (s *SequenceSource) Close() error {
	s.next = len(s.files)
	return nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}
