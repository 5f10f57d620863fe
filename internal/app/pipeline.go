package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/drowsewatch/internal/capture"
	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/overlay"
	"github.com/ayusman/drowsewatch/internal/ratio"
)

// run is the polling loop. Each tick, while live:
// 1. Read a frame from the camera
// 2. Detect face landmarks
// 3. Compute EAR/MAR and classify
// 4. Draw the overlay and keep the encoded preview
// 5. Journal status changes and notify subscribers
//
// A file source that runs out of frames turns live off.
func (m *Monitor) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !m.IsLive() {
				continue
			}

			frame, err := m.camera.ReadFrame()
			if err != nil {
				switch {
				case errors.Is(err, capture.ErrEndOfStream):
					m.log.Info("end of stream, stopping live monitoring")
					if err := m.SetLive(false); err != nil {
						m.log.WithError(err).Warn("error closing camera")
					}
				case errors.Is(err, capture.ErrCameraNotOpen):
					// Raced with SetLive(false).
				default:
					m.log.WithError(err).Warn("error reading frame")
				}
				continue
			}

			if _, err := m.ProcessFrame(frame); err != nil {
				m.log.WithError(err).Error("frame skipped")
			}
			frame.Close()
		}
	}
}

// ProcessFrame runs one frame through detection and classification, draws
// the overlay onto frame, and publishes the resulting update. Errors are
// local to the frame; the classifier state is untouched when one is returned.
func (m *Monitor) ProcessFrame(frame *gocv.Mat) (Update, error) {
	if frame == nil || frame.Empty() {
		return Update{}, ErrEmptyFrame
	}

	landmarks, err := m.detector.Detect(frame)
	if err != nil {
		return Update{}, fmt.Errorf("detect landmarks: %w", err)
	}

	var metrics *ratio.FrameMetrics
	if landmarks != nil {
		fm, err := ratio.Compute(landmarks, frame.Cols(), frame.Rows())
		if err != nil {
			return Update{}, fmt.Errorf("compute ratios: %w", err)
		}
		metrics = &fm
	}

	m.mu.Lock()
	result := m.classifier.Classify(metrics)
	m.frames++
	m.session.observe(result)
	previous := m.latest
	u := m.updateLocked(result)
	m.latest = u
	changed := m.frames == 1 || previous.Status != result.Status
	flush := func() {}
	if changed {
		row, event := m.session.row(m.config.Source, classifier.State{}), newEvent(u)
		flush = m.later(func(j *journal) { j.record(row, event) })
	}
	m.mu.Unlock()
	flush()

	if changed {
		m.log.WithFields(logrus.Fields{
			"session":    u.SessionID,
			"status":     u.Status.Key(),
			"eye_closed": u.EyeClosedCount,
			"yawns":      u.YawnCount,
		}).Info("status changed")
	}

	overlay.Draw(frame, landmarks, result, m.config.Style)
	m.storePreview(frame)

	m.publish(u)
	return u, nil
}

func (m *Monitor) storePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{gocv.IMWriteJpegQuality, m.config.JPEGQuality})
	if err != nil {
		m.log.WithError(err).Debug("failed to encode preview")
		return
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	m.jpegMu.Lock()
	m.jpeg = data
	m.jpegMu.Unlock()
}
