package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks of the detected face.
	// Returns nil with a nil error if no face is found in the frame.
	Detect(frame *gocv.Mat) (*FaceLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face landmark detection.
type Config struct {
	// MaxFaces is the maximum number of faces to detect. Only the first is used.
	MaxFaces int

	// RefineLandmarks enables iris refinement (478 points instead of 468).
	RefineLandmarks bool

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        1,
		RefineLandmarks: true,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
