package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a single
// fixed face or as a scripted sequence consumed one call at a time.
type MockDetector struct {
	mu       sync.Mutex
	face     *FaceLandmarks
	sequence []*FaceLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face that will be returned by every Detect call.
// A nil face simulates a frame with no face.
func (m *MockDetector) SetFace(face *FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.face = face
	m.sequence = nil
}

// SetSequence queues faces returned by successive Detect calls. Once the
// queue is drained, Detect falls back to the face set by SetFace.
func (m *MockDetector) SetSequence(faces ...*FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append([]*FaceLandmarks(nil), faces...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured face or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		face := m.sequence[0]
		m.sequence = m.sequence[1:]
		return face, nil
	}
	return m.face, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Geometry of the synthetic face, as fractions of the frame width.
const (
	syntheticEyeWidth   = 0.10
	syntheticMouthWidth = 0.16
)

// SyntheticFace builds a full face mesh whose eye aspect ratio and mouth aspect
// ratio come out exactly as ear and mar once mapped onto a width x height frame.
// Points that are not used by the ratios are parked at the face center.
func SyntheticFace(ear, mar float64, width, height int) *FaceLandmarks {
	w, h := float64(width), float64(height)
	points := make([]Point2D, NumFaceMeshLandmarks)
	for i := range points {
		points[i] = Point2D{X: 0.5, Y: 0.5}
	}

	placeEye(points, LeftEye, 0.38, 0.42, ear, w, h)
	placeEye(points, RightEye, 0.62, 0.42, ear, w, h)

	// Mouth: corners on a horizontal line, lips centered between them.
	mouthPx := syntheticMouthWidth * w
	openPx := mar * mouthPx
	cx, cy := 0.5, 0.68
	points[Mouth[0]] = Point2D{X: cx - syntheticMouthWidth/2, Y: cy}
	points[Mouth[1]] = Point2D{X: cx + syntheticMouthWidth/2, Y: cy}
	points[Mouth[2]] = Point2D{X: cx, Y: cy - openPx/2/h}
	points[Mouth[3]] = Point2D{X: cx, Y: cy + openPx/2/h}

	return &FaceLandmarks{Points: points}
}

// placeEye lays out six eye points around (cx, cy) so that both vertical pairs
// span ear times the horizontal corner distance in pixel space.
func placeEye(points []Point2D, eye [6]int, cx, cy, ear, w, h float64) {
	half := syntheticEyeWidth / 2
	openPx := ear * syntheticEyeWidth * w
	dy := openPx / 2 / h
	third := syntheticEyeWidth / 6

	points[eye[0]] = Point2D{X: cx - half, Y: cy}
	points[eye[3]] = Point2D{X: cx + half, Y: cy}
	points[eye[1]] = Point2D{X: cx - third, Y: cy - dy}
	points[eye[5]] = Point2D{X: cx - third, Y: cy + dy}
	points[eye[2]] = Point2D{X: cx + third, Y: cy - dy}
	points[eye[4]] = Point2D{X: cx + third, Y: cy + dy}
}

// AlertLandmarks returns a face with open eyes and a closed mouth on a 640x480 frame.
func AlertLandmarks() *FaceLandmarks {
	return SyntheticFace(0.30, 0.10, 640, 480)
}

// EyesClosedLandmarks returns a face with nearly shut eyes and a closed mouth on a 640x480 frame.
func EyesClosedLandmarks() *FaceLandmarks {
	return SyntheticFace(0.10, 0.10, 640, 480)
}

// YawningLandmarks returns a face with open eyes and a wide open mouth on a 640x480 frame.
func YawningLandmarks() *FaceLandmarks {
	return SyntheticFace(0.30, 0.70, 640, 480)
}
