// Package testdata builds frame fixtures for tests that drive the monitor loop.
package testdata

import (
	"testing"

	"gocv.io/x/gocv"
)

// Frame geometry shared with detector.SyntheticFace fixtures.
const (
	FrameWidth  = 640
	FrameHeight = 480
)

// BlankFrames returns n black BGR frames, closed when the test ends.
func BlankFrames(t testing.TB, n int) []*gocv.Mat {
	t.Helper()

	frames := make([]*gocv.Mat, n)
	for i := range frames {
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
		frames[i] = &mat
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}
