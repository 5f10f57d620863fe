// Package detector provides face landmark detection interfaces and types for drowsiness monitoring.
package detector

import "fmt"

// Face mesh landmark indices following the MediaPipe Face Mesh convention.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
//
// Eye contours are listed in canonical order: p0 and p3 are the horizontal
// corners, (p1, p5) and (p2, p4) are the two vertical pairs.
// Mouth points are listed as: left corner, right corner, upper inner lip, lower inner lip.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
	Mouth    = [4]int{61, 291, 13, 14}
)

// NumFaceMeshLandmarks is the number of points in a face mesh without iris refinement.
const NumFaceMeshLandmarks = 468

// Point2D represents a landmark position normalized to [0,1] relative to the
// frame width (X) and height (Y).
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceLandmarks is the set of landmarks detected on a single face.
type FaceLandmarks struct {
	Points []Point2D `json:"points"`
}

// Len returns the number of points in the set. A nil set has no points.
func (f *FaceLandmarks) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Points)
}

// At returns the point at index i and whether it exists.
func (f *FaceLandmarks) At(i int) (Point2D, bool) {
	if f == nil || i < 0 || i >= len(f.Points) {
		return Point2D{}, false
	}
	return f.Points[i], true
}

// Pixel maps the normalized point at index i into pixel space for a frame of the given size.
func (f *FaceLandmarks) Pixel(i, width, height int) ([]float64, error) {
	p, ok := f.At(i)
	if !ok {
		return nil, fmt.Errorf("landmark %d of %d", i, f.Len())
	}
	return []float64{p.X * float64(width), p.Y * float64(height)}, nil
}

// Indices returns every landmark index the drowsiness ratios depend on,
// left eye first, then right eye, then mouth.
func Indices() []int {
	idx := make([]int, 0, len(LeftEye)+len(RightEye)+len(Mouth))
	idx = append(idx, LeftEye[:]...)
	idx = append(idx, RightEye[:]...)
	idx = append(idx, Mouth[:]...)
	return idx
}
