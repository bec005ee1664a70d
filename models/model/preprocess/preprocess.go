// Package preprocess - Maps video frames onto the fixed input tensor of a detector.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/ssd-video/images"
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string `json:"name" yaml:"name"`
	// InputWidth is the expected width of the model input.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the expected height of the model input.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType `json:"normalization" yaml:"normalization"`
	// MeanValues for mean subtraction and standardization, in input channel order.
	MeanValues []float32 `json:"mean" yaml:"mean"`
	// StdValues for standardization (if NormalizationType is Standardize).
	StdValues []float32 `json:"std" yaml:"std"`
	// ChannelOrder defines the channel ordering (CHW or HWC).
	ChannelOrder ChannelOrder `json:"channel_order" yaml:"channel_order"`
	// ColorMode defines the channel order of the colors (RGB or BGR).
	ColorMode ColorMode `json:"color_mode" yaml:"color_mode"`
	// KeepAspectRatio if true, maintains aspect ratio with letterboxing.
	KeepAspectRatio bool `json:"keep_aspect_ratio" yaml:"keep_aspect_ratio"`
	// LetterboxColor is the color used for letterbox padding (default black).
	LetterboxColor color.Color `json:"-" yaml:"-"`
	// Interpolation is the resampling filter used when resizing.
	Interpolation resize.InterpolationFunction `json:"-" yaml:"-"`
}

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeNone keeps pixel values as 0-255.
	NormalizeNone NormalizationType = iota
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne
	// NormalizeMeanSubtract subtracts the per-channel mean from 0-255 values.
	NormalizeMeanSubtract
	// NormalizeStandardize applies mean and std normalization on 0-255 values.
	NormalizeStandardize
)

// ChannelOrder defines the ordering of image channels.
type ChannelOrder int

const (
	// ChannelOrderCHW is Channel-Height-Width ordering (common for ONNX).
	ChannelOrderCHW ChannelOrder = iota
	// ChannelOrderHWC is Height-Width-Channel ordering (TensorFlow exports).
	ChannelOrderHWC
)

// ColorMode defines the color space of the image.
type ColorMode int

const (
	// ColorModeRGB is standard RGB color mode.
	ColorModeRGB ColorMode = iota
	// ColorModeBGR is BGR color mode (common for OpenCV models).
	ColorModeBGR
)

const channels = 3

// Result contains the preprocessed tensor and what is needed to map detections back.
type Result struct {
	// Tensor is the batch-of-one input tensor, [1, C, H, W] or [1, H, W, C].
	Tensor *tensor.Dense
	// Reference is the region of the input tensor covered by the frame, in normalized
	// input coordinates. It is the unit box for a stretch resize.
	Reference images.Box
	// OriginalWidth is the original image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the original image height before preprocessing.
	OriginalHeight int
	// ScaleX is the horizontal scaling factor applied.
	ScaleX float64
	// ScaleY is the vertical scaling factor applied.
	ScaleY float64
	// PadLeft is the left padding applied for letterboxing.
	PadLeft int
	// PadTop is the top padding applied for letterboxing.
	PadTop int
}

// Preprocessor handles image preprocessing for a detector.
type Preprocessor struct {
	config *ModelConfig
	logger logrus.FieldLogger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model-specific preprocessing configuration.
// - logger: Receives debug output. May be nil.
//
// Returns:
// - A configured Preprocessor instance.
// - error if the configuration is unusable.
//
// @example
//
//	preprocessor, err := NewPreprocessor(GetSSD300Config(), logger)
func NewPreprocessor(config *ModelConfig, logger logrus.FieldLogger) (*Preprocessor, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf("invalid input size %dx%d", config.InputWidth, config.InputHeight)
	}
	switch config.NormalizationType {
	case NormalizeMeanSubtract:
		if len(config.MeanValues) != channels {
			return nil, errors.Errorf("mean subtraction needs %d mean values, got %d", channels, len(config.MeanValues))
		}
	case NormalizeStandardize:
		if len(config.MeanValues) != channels || len(config.StdValues) != channels {
			return nil, errors.Errorf("standardization needs %d mean and std values", channels)
		}
		for i, s := range config.StdValues {
			if s == 0 {
				return nil, errors.Errorf("std value %d is zero", i)
			}
		}
	}

	// Set default letterbox color if not specified.
	if config.LetterboxColor == nil {
		config.LetterboxColor = color.Black
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}

	return &Preprocessor{config: config, logger: logger.WithField("model", config.Name)}, nil
}

// InputShape returns the detector input size.
func (p *Preprocessor) InputShape() image.Point {
	return image.Point{X: p.config.InputWidth, Y: p.config.InputHeight}
}

// Prepare performs all necessary preprocessing steps on a frame.
//
// Arguments:
// - img: The frame to preprocess.
//
// Returns:
// - Result containing the input tensor and the reference box.
// - error if preprocessing fails.
func (p *Preprocessor) Prepare(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Errorf("image is empty: %v", bounds)
	}

	resized, scaleX, scaleY, padLeft, padTop, inner := p.resizeImage(img)

	p.logger.WithFields(logrus.Fields{
		"source":  bounds.Size(),
		"scale":   [2]float64{scaleX, scaleY},
		"padding": [2]int{padLeft, padTop},
	}).Debug("resized frame")

	data := p.imageToTensor(resized)
	p.normalize(data)

	var shape []int
	if p.config.ChannelOrder == ChannelOrderCHW {
		shape = []int{1, channels, p.config.InputHeight, p.config.InputWidth}
	} else {
		shape = []int{1, p.config.InputHeight, p.config.InputWidth, channels}
	}

	w := float32(p.config.InputWidth)
	h := float32(p.config.InputHeight)
	return &Result{
		Tensor: tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)),
		Reference: images.Box{
			YMin: float32(inner.Min.Y) / h,
			XMin: float32(inner.Min.X) / w,
			YMax: float32(inner.Max.Y) / h,
			XMax: float32(inner.Max.X) / w,
		},
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
		ScaleX:         scaleX,
		ScaleY:         scaleY,
		PadLeft:        padLeft,
		PadTop:         padTop,
	}, nil
}

// resizeImage resizes the image to the model input dimensions.
//
// Returns:
// - The resized image, always exactly InputWidth x InputHeight.
// - scaleX, scaleY: Scaling factors.
// - padLeft, padTop: Letterbox padding.
// - The rectangle of the output occupied by the frame.
func (p *Preprocessor) resizeImage(img image.Image) (image.Image, float64, float64, int, int, image.Rectangle) {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	full := image.Rect(0, 0, p.config.InputWidth, p.config.InputHeight)

	scaleX := float64(p.config.InputWidth) / float64(srcWidth)
	scaleY := float64(p.config.InputHeight) / float64(srcHeight)

	if !p.config.KeepAspectRatio {
		// Simple resize without maintaining aspect ratio.
		resized := resize.Resize(uint(p.config.InputWidth), uint(p.config.InputHeight), img, p.config.Interpolation)
		return resized, scaleX, scaleY, 0, 0, full
	}

	scale := math.Min(scaleX, scaleY)
	newWidth := max(1, int(float64(srcWidth)*scale))
	newHeight := max(1, int(float64(srcHeight)*scale))

	resized := resize.Resize(uint(newWidth), uint(newHeight), img, p.config.Interpolation)

	padLeft := (p.config.InputWidth - newWidth) / 2
	padTop := (p.config.InputHeight - newHeight) / 2
	inner := image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight)

	letterboxed := image.NewRGBA(full)
	draw.Draw(letterboxed, full, &image.Uniform{C: p.config.LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(letterboxed, inner, resized, resized.Bounds().Min, draw.Src)

	return letterboxed, scale, scale, padLeft, padTop, inner
}

// imageToTensor converts an image to float32 values in 0-255.
func (p *Preprocessor) imageToTensor(img image.Image) []float32 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	plane := width * height

	out := make([]float32, plane*channels)

	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			ch0, ch1, ch2 := float32(r>>8), float32(g>>8), float32(b>>8)
			if p.config.ColorMode == ColorModeBGR {
				ch0, ch2 = ch2, ch0
			}

			if p.config.ChannelOrder == ChannelOrderCHW {
				out[idx] = ch0
				out[plane+idx] = ch1
				out[2*plane+idx] = ch2
				idx++
			} else {
				out[3*idx] = ch0
				out[3*idx+1] = ch1
				out[3*idx+2] = ch2
				idx++
			}
		}
	}

	return out
}

// normalize applies normalization to the tensor in place.
func (p *Preprocessor) normalize(data []float32) {
	plane := len(data) / channels
	at := func(c, i int) int {
		if p.config.ChannelOrder == ChannelOrderCHW {
			return c*plane + i
		}
		return i*channels + c
	}

	switch p.config.NormalizationType {
	case NormalizeZeroToOne:
		for i := range data {
			data[i] /= 255.0
		}
	case NormalizeMeanSubtract:
		for c := 0; c < channels; c++ {
			mean := p.config.MeanValues[c]
			for i := 0; i < plane; i++ {
				data[at(c, i)] -= mean
			}
		}
	case NormalizeStandardize:
		for c := 0; c < channels; c++ {
			mean := p.config.MeanValues[c]
			std := p.config.StdValues[c]
			for i := 0; i < plane; i++ {
				j := at(c, i)
				data[j] = (data[j] - mean) / std
			}
		}
	}
}

// GetSSD300Config returns the configuration of the SSD300 VGG-16 network: a plain stretch to
// 300x300, RGB with the VGG channel means subtracted, in HWC order.
//
// @example
// preprocessor, err := NewPreprocessor(GetSSD300Config(), logger)
func GetSSD300Config() *ModelConfig {
	return &ModelConfig{
		Name:              "ssd300-vgg16",
		InputWidth:        300,
		InputHeight:       300,
		NormalizationType: NormalizeMeanSubtract,
		MeanValues:        []float32{123, 117, 104},
		ChannelOrder:      ChannelOrderHWC,
		ColorMode:         ColorModeRGB,
		KeepAspectRatio:   false,
		Interpolation:     resize.Bilinear,
	}
}
