package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// VideoExtension is the only accepted container.
const VideoExtension = ".mp4"

// IsVideoFile reports whether name carries the accepted video extension.
func IsVideoFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), VideoExtension)
}

// TempVideo is an uploaded video copied to a private temporary file.
// Remove deletes it; callers defer Remove right after a successful Save.
type TempVideo struct {
	Path string
	Size int64
}

// SaveTemp copies the upload into a new temporary file in dir (the system
// temp directory when dir is empty). Each call gets a unique file name.
func SaveTemp(upload io.Reader, dir string) (video *TempVideo, err error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
	}

	file, err := os.CreateTemp(dir, "upload-*"+VideoExtension)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
		if err != nil {
			os.Remove(file.Name())
			video = nil
		}
	}()

	size, err := io.Copy(file, upload)
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	return &TempVideo{Path: file.Name(), Size: size}, nil
}

// Remove deletes the temporary file. Removing twice is not an error.
func (v *TempVideo) Remove() error {
	if err := os.Remove(v.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp video: %w", err)
	}
	return nil
}
