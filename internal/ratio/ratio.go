// Package ratio computes the eye aspect ratio (EAR) and mouth aspect ratio (MAR)
// of a face from its landmarks.
//
// Both ratios divide a vertical opening by a horizontal width measured on the
// same face, so they are dimensionless and do not depend on how large the face
// appears in the frame.
package ratio

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/drowsewatch/internal/detector"
)

// MinDenominator is the smallest horizontal width, in pixels, that still gives
// a usable ratio. Narrower geometry yields the Unreliable sentinel.
const MinDenominator = 1e-6

var (
	// ErrMissingLandmark is returned when the landmark set lacks a required index.
	ErrMissingLandmark = errors.New("missing landmark")
	// ErrInvalidFrameSize is returned when the frame width or height is not positive.
	ErrInvalidFrameSize = errors.New("invalid frame size")
)

// Unreliable returns the sentinel reading used for degenerate geometry.
func Unreliable() float64 {
	return math.NaN()
}

// IsReliable reports whether v is a usable ratio rather than the sentinel.
func IsReliable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FrameMetrics holds the ratios computed from one frame.
type FrameMetrics struct {
	EAR float64 `json:"ear"`
	MAR float64 `json:"mar"`
}

// ReliableEAR reports whether the eye reading can be compared against a threshold.
func (m FrameMetrics) ReliableEAR() bool { return IsReliable(m.EAR) }

// ReliableMAR reports whether the mouth reading can be compared against a threshold.
func (m FrameMetrics) ReliableMAR() bool { return IsReliable(m.MAR) }

// MarshalJSON encodes unreliable readings as null.
func (m FrameMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EAR *float64 `json:"ear"`
		MAR *float64 `json:"mar"`
	}{reliable(m.EAR), reliable(m.MAR)})
}

func reliable(v float64) *float64 {
	if !IsReliable(v) {
		return nil
	}
	return &v
}

// Compute derives the frame metrics from a face: EAR is the mean of both eyes,
// MAR comes from the mouth. If either eye is degenerate the frame EAR is the sentinel.
func Compute(lm *detector.FaceLandmarks, width, height int) (FrameMetrics, error) {
	left, err := ComputeEAR(lm, detector.LeftEye, width, height)
	if err != nil {
		return FrameMetrics{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := ComputeEAR(lm, detector.RightEye, width, height)
	if err != nil {
		return FrameMetrics{}, fmt.Errorf("right eye: %w", err)
	}
	mar, err := ComputeMAR(lm, detector.Mouth, width, height)
	if err != nil {
		return FrameMetrics{}, fmt.Errorf("mouth: %w", err)
	}

	// NaN propagates through the mean.
	return FrameMetrics{EAR: (left + right) / 2, MAR: mar}, nil
}

// ComputeEAR returns (|p1-p5| + |p2-p4|) / (2 |p0-p3|) for the six eye points.
func ComputeEAR(lm *detector.FaceLandmarks, eye [6]int, width, height int) (float64, error) {
	p, err := pixels(lm, eye[:], width, height)
	if err != nil {
		return 0, err
	}

	hor := floats.Distance(p[0], p[3], 2)
	if hor < MinDenominator {
		return Unreliable(), nil
	}
	ver := floats.Distance(p[1], p[5], 2) + floats.Distance(p[2], p[4], 2)
	return ver / (2.0 * hor), nil
}

// ComputeMAR returns |q2-q3| / |q0-q1| for the four mouth points.
func ComputeMAR(lm *detector.FaceLandmarks, mouth [4]int, width, height int) (float64, error) {
	q, err := pixels(lm, mouth[:], width, height)
	if err != nil {
		return 0, err
	}

	hor := floats.Distance(q[0], q[1], 2)
	if hor < MinDenominator {
		return Unreliable(), nil
	}
	return floats.Distance(q[2], q[3], 2) / hor, nil
}

// pixels maps the requested landmarks into pixel space.
func pixels(lm *detector.FaceLandmarks, indices []int, width, height int) ([][]float64, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, width, height)
	}

	out := make([][]float64, len(indices))
	for i, idx := range indices {
		p, err := lm.Pixel(idx, width, height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingLandmark, err)
		}
		out[i] = p
	}
	return out, nil
}
