package app

import (
	"math"
	"time"

	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/store"
)

// SessionInfo summarizes the running session.
type SessionInfo struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	Config     classifier.Config `json:"-"`
	Frames     int               `json:"frames"`
	FaceFrames int               `json:"face_frames"`
	MeanEAR    *float64          `json:"mean_ear,omitempty"`
	StdDevEAR  *float64          `json:"stddev_ear,omitempty"`
	MeanMAR    *float64          `json:"mean_mar,omitempty"`
	StdDevMAR  *float64          `json:"stddev_mar,omitempty"`
}

// runningStats accumulates a mean and sample variance in constant space
// (Welford's online algorithm).
type runningStats struct {
	n    int
	mean float64
	m2   float64
}

func (r *runningStats) add(x float64) {
	r.n++
	d := x - r.mean
	r.mean += d / float64(r.n)
	r.m2 += d * (x - r.mean)
}

// meanStdDev returns nil for what cannot be estimated yet: both with no
// samples, the standard deviation with a single one.
func (r runningStats) meanStdDev() (*float64, *float64) {
	switch r.n {
	case 0:
		return nil, nil
	case 1:
		mean := r.mean
		return &mean, nil
	}
	mean := r.mean
	std := math.Sqrt(r.m2 / float64(r.n-1))
	return &mean, &std
}

// sessionTracker accumulates per-session ratio statistics.
type sessionTracker struct {
	id         string
	started    time.Time
	config     classifier.Config
	frames     int
	faceFrames int
	ear        runningStats
	mar        runningStats
}

func newSessionTracker(id string, cfg classifier.Config) *sessionTracker {
	return &sessionTracker{
		id:      id,
		started: time.Now(),
		config:  cfg,
	}
}

// observe records one classified frame. Unreliable readings are left out of the statistics.
func (s *sessionTracker) observe(r classifier.Result) {
	s.frames++
	if r.Metrics == nil {
		return
	}
	s.faceFrames++
	if r.Metrics.ReliableEAR() {
		s.ear.add(r.Metrics.EAR)
	}
	if r.Metrics.ReliableMAR() {
		s.mar.add(r.Metrics.MAR)
	}
}

func (s *sessionTracker) info() SessionInfo {
	info := SessionInfo{
		ID:         s.id,
		StartedAt:  s.started,
		Config:     s.config,
		Frames:     s.frames,
		FaceFrames: s.faceFrames,
	}
	info.MeanEAR, info.StdDevEAR = s.ear.meanStdDev()
	info.MeanMAR, info.StdDevMAR = s.mar.meanStdDev()
	return info
}

// row builds the journal record for the session with its final counts.
func (s *sessionTracker) row(source string, state classifier.State) *store.Session {
	meanEAR, _ := s.ear.meanStdDev()
	meanMAR, _ := s.mar.meanStdDev()
	return &store.Session{
		ID:             s.id,
		Source:         source,
		EARThreshold:   s.config.EyeClosedThreshold,
		MARThreshold:   s.config.YawnThreshold,
		EyeFrames:      s.config.EyeConsecFrames,
		YawnFrames:     s.config.YawnConsecFrames,
		ResetOnNoFace:  s.config.ResetOnNoFace,
		StartedAt:      s.started,
		Frames:         s.frames,
		FaceFrames:     s.faceFrames,
		EyeClosedCount: state.EyeClosedEventCount,
		YawnCount:      state.YawnEventCount,
		MeanEAR:        meanEAR,
		MeanMAR:        meanMAR,
	}
}
