package detector

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// FaceFinder reports whether an image contains at least one face.
type FaceFinder interface {
	HasFace(img image.Image) bool
}

// GatedDetector runs a cheap face presence check before delegating to a
// landmark detector. Frames without a face are reported as no-face without
// paying for landmark extraction.
type GatedDetector struct {
	inner  Detector
	finder FaceFinder
}

// NewGatedDetector wraps inner so that it only runs when finder sees a face.
func NewGatedDetector(inner Detector, finder FaceFinder) *GatedDetector {
	return &GatedDetector{inner: inner, finder: finder}
}

// Detect returns nil without calling the wrapped detector when no face is found.
func (g *GatedDetector) Detect(frame *gocv.Mat) (*FaceLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	if !g.finder.HasFace(img) {
		return nil, nil
	}
	return g.inner.Detect(frame)
}

// Close closes the wrapped detector.
func (g *GatedDetector) Close() error {
	return g.inner.Close()
}

// PigoFinder finds faces with the pigo pixel intensity comparison cascade.
type PigoFinder struct {
	classifier *pigo.Pigo
	minSize    int
	minQuality float32
}

// Pigo cascade defaults.
const (
	DefaultMinFaceSize = 80
	DefaultMinQuality  = 5.0
	iouThreshold       = 0.2
)

// NewPigoFinder loads a pigo face cascade from cascadePath.
func NewPigoFinder(cascadePath string) (*PigoFinder, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &PigoFinder{
		classifier: classifier,
		minSize:    DefaultMinFaceSize,
		minQuality: DefaultMinQuality,
	}, nil
}

// HasFace runs the cascade over img and reports whether any clustered
// detection reaches the minimum quality score.
func (f *PigoFinder) HasFace(img image.Image) bool {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return false
	}

	maxSize := cols
	if rows > maxSize {
		maxSize = rows
	}

	params := pigo.CascadeParams{
		MinSize:     f.minSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	detections := f.classifier.RunCascade(params, 0.0)
	detections = f.classifier.ClusterDetections(detections, iouThreshold)

	for _, d := range detections {
		if d.Q >= f.minQuality {
			return true
		}
	}
	return false
}
