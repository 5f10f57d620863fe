// Package overlay draws landmarks and the classification banner onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/detector"
)

// Overlay colors. Green marks landmarks and the Active banner, Red the other statuses.
var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// Style controls how the overlay is rendered.
type Style struct {
	PointRadius  int
	FontFace     gocv.HersheyFont
	FontScale    float64
	Thickness    int
	BannerHeight int
	Padding      int
}

// DefaultStyle returns small green dots and a 40px banner.
func DefaultStyle() Style {
	return Style{
		PointRadius:  2,
		FontFace:     gocv.FontHersheySimplex,
		FontScale:    0.6,
		Thickness:    2,
		BannerHeight: 40,
		Padding:      10,
	}
}

// StatusColor is green while the driver is active and red otherwise.
func StatusColor(s classifier.Status) color.RGBA {
	if s == classifier.Active {
		return Green
	}
	return Red
}

// Landmarks draws a filled dot for every eye and mouth landmark present in lm.
// Missing indices are skipped.
func Landmarks(img *gocv.Mat, lm *detector.FaceLandmarks, style Style) {
	if img == nil || img.Empty() || lm.Len() == 0 {
		return
	}
	w, h := img.Cols(), img.Rows()
	for _, idx := range detector.Indices() {
		p, err := lm.Pixel(idx, w, h)
		if err != nil {
			continue
		}
		gocv.Circle(img, image.Pt(int(p[0]), int(p[1])), style.PointRadius, Green, -1)
	}
}

// Banner draws the status label and event counters along the top edge.
func Banner(img *gocv.Mat, r classifier.Result, style Style) {
	if img == nil || img.Empty() {
		return
	}

	bar := image.Rect(0, 0, img.Cols(), style.BannerHeight)
	gocv.Rectangle(img, bar, Black, -1)

	baseline := style.BannerHeight - style.Padding - 4
	gocv.PutText(img, r.Status.String(), image.Pt(style.Padding, baseline),
		style.FontFace, style.FontScale, StatusColor(r.Status), style.Thickness)

	counters := fmt.Sprintf("eyes %d  yawns %d", r.EyeClosedCount, r.YawnCount)
	if r.Metrics != nil && r.Metrics.ReliableEAR() && r.Metrics.ReliableMAR() {
		counters = fmt.Sprintf("EAR %.2f  MAR %.2f  %s", r.Metrics.EAR, r.Metrics.MAR, counters)
	}
	size := gocv.GetTextSize(counters, style.FontFace, style.FontScale*0.8, 1)
	x := img.Cols() - size.X - style.Padding
	if x < style.Padding {
		x = style.Padding
	}
	gocv.PutText(img, counters, image.Pt(x, baseline), style.FontFace, style.FontScale*0.8, White, 1)
}

// Draw renders landmarks then the banner.
func Draw(img *gocv.Mat, lm *detector.FaceLandmarks, r classifier.Result, style Style) {
	Landmarks(img, lm, style)
	Banner(img, r, style)
}
