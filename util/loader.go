// Package util - Filesystem helpers.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file of a frame sequence.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number of the image file.
	Frame int
}

// FramePrefix is the file name prefix of sequence frames, as in "frame-12.jpg".
const FramePrefix = "frame-"

// ListDirectoryImageFiles lists the numbered frame images of a directory in frame order.
//
// Files named "frame-<n>" with a .jpg, .jpeg or .png extension are returned; anything else
// is skipped. The images are not read.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The frames sorted by frame number.
// - error: Error if the directory cannot be read.
func ListDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read frame directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		if !strings.HasPrefix(name, FramePrefix) {
			continue
		}
		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, FramePrefix), ext))
		if err != nil {
			continue
		}
		files = append(files, ImageFile{
			Path:  filepath.Join(dir, name),
			Frame: frame,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}
