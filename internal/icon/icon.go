// Package icon normalizes uploaded streamer icons into square PNGs
// bounded to the sizes the timeline renders.
package icon

import (
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"

	// webp uploads decode through the x/image registration; imaging
	// itself covers jpeg, png, gif, tiff and bmp.
	_ "golang.org/x/image/webp"
)

const (
	// MinEdge is the smallest icon edge the timeline can render legibly.
	MinEdge = 32
	// MaxEdge bounds stored icons; larger uploads are downscaled to it.
	MaxEdge = 128
)

// ValidationError reports an icon upload the processor refuses. The
// message is safe to surface to the uploader.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Process validates srcPath and writes the normalized PNG into destDir,
// returning its path. Inputs larger than MaxEdge are downscaled; smaller
// ones are never upscaled.
func Process(srcPath, destDir string) (string, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", &ValidationError{Msg: fmt.Sprintf("unsupported or unreadable image: %v", err)}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width != height {
		return "", &ValidationError{Msg: fmt.Sprintf("icon must be a square image (got %dx%d)", width, height)}
	}
	if width < MinEdge {
		return "", &ValidationError{Msg: fmt.Sprintf("icon too small: minimum %dx%d (got %dx%d)", MinEdge, MinEdge, width, height)}
	}
	if width > MaxEdge {
		img = imaging.Resize(img, MaxEdge, MaxEdge, imaging.Lanczos)
	}

	destPath := filepath.Join(destDir, "icon.png")
	if err := imaging.Save(img, destPath); err != nil {
		return "", fmt.Errorf("write icon png: %w", err)
	}
	return destPath, nil
}
