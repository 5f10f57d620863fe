package overlay

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/detector"
	"github.com/ayusman/drowsewatch/internal/ratio"
)

func blankFrame(t *testing.T) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status classifier.Status
		want   string
	}{
		{classifier.Active, "green"},
		{classifier.EyesClosedDrowsy, "red"},
		{classifier.YawningDrowsy, "red"},
		{classifier.NoFaceDetected, "red"},
	}

	for _, tt := range tests {
		t.Run(tt.status.Key(), func(t *testing.T) {
			got := StatusColor(tt.status)
			want := Red
			if tt.want == "green" {
				want = Green
			}
			if got != want {
				t.Errorf("StatusColor(%v) = %v, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestLandmarks_DrawsGreenDots(t *testing.T) {
	img := blankFrame(t)
	defer img.Close()

	lm := detector.AlertLandmarks()
	Landmarks(&img, lm, DefaultStyle())

	for _, idx := range detector.Indices() {
		p, err := lm.Pixel(idx, img.Cols(), img.Rows())
		if err != nil {
			t.Fatalf("Pixel(%d) error = %v", idx, err)
		}
		x, y := int(p[0]), int(p[1])
		// Mats are BGR.
		px := img.GetVecbAt(y, x)
		if px[0] != 0 || px[1] != 255 || px[2] != 0 {
			t.Errorf("landmark %d at (%d,%d) = BGR%v, want green", idx, x, y, px)
		}
	}
}

func TestLandmarks_SkipsMissingPoints(t *testing.T) {
	img := blankFrame(t)
	defer img.Close()

	// Only a handful of points: none of the eye or mouth indices resolve.
	lm := &detector.FaceLandmarks{Points: make([]detector.Point2D, 10)}
	Landmarks(&img, lm, DefaultStyle())
	Landmarks(&img, nil, DefaultStyle())

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if n := gocv.CountNonZero(gray); n != 0 {
		t.Errorf("expected no drawing, found %d lit pixels", n)
	}
}

func TestBanner(t *testing.T) {
	img := blankFrame(t)
	defer img.Close()

	style := DefaultStyle()
	Banner(&img, classifier.Result{
		Status:         classifier.EyesClosedDrowsy,
		EyeClosedCount: 3,
		Metrics:        &ratio.FrameMetrics{EAR: 0.12, MAR: 0.2},
	}, style)

	channels := img.Split()
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	banner := channels[2].Region(image.Rect(0, 0, img.Cols(), style.BannerHeight))
	defer banner.Close()
	if gocv.CountNonZero(banner) == 0 {
		t.Error("expected red text in the banner")
	}

	below := channels[2].Region(image.Rect(0, style.BannerHeight, img.Cols(), img.Rows()))
	defer below.Close()
	if n := gocv.CountNonZero(below); n != 0 {
		t.Errorf("banner leaked %d pixels below its area", n)
	}
}

func TestDraw_EmptyMat(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	// Must not panic on an empty frame.
	Draw(&img, detector.AlertLandmarks(), classifier.Result{Status: classifier.Active}, DefaultStyle())
	Draw(nil, nil, classifier.Result{}, DefaultStyle())
}
