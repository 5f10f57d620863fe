// Package app drives the drowsiness monitoring loop: it pulls frames from the
// camera, runs landmark detection and classification, and fans results out to
// the journal and any subscribers.
package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/capture"
	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/detector"
	"github.com/ayusman/drowsewatch/internal/overlay"
	"github.com/ayusman/drowsewatch/internal/store"
)

// Loop timing constants.
const (
	// DefaultPollInterval matches the 10ms refresh of the desktop loop.
	DefaultPollInterval = 10 * time.Millisecond
	// DefaultJPEGQuality is used for the annotated preview frame.
	DefaultJPEGQuality = 80
)

var (
	// ErrEmptyFrame is returned by ProcessFrame for a nil or empty Mat.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrStopped is returned when the monitor has been stopped for good.
	ErrStopped = errors.New("monitor stopped")
)

// Config holds configuration options for the monitor.
type Config struct {
	// Source is recorded on each journaled session (device id or file path).
	Source       string
	Classifier   classifier.Config
	PollInterval time.Duration
	// Store is optional; without it sessions are not journaled.
	Store       *store.Store
	Logger      logrus.FieldLogger
	Style       overlay.Style
	JPEGQuality int
}

// Update is the latest classification published to subscribers.
type Update struct {
	SessionID string `json:"session_id"`
	Frame     uint64 `json:"frame"`
	Live      bool   `json:"live"`
	classifier.Result
	Timestamp time.Time `json:"timestamp"`
}

// Monitor owns one classifier per session and serializes every call to it.
type Monitor struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	log      logrus.FieldLogger

	mu         sync.RWMutex
	classifier *classifier.Classifier
	session    *sessionTracker
	frames     uint64
	latest     Update
	live       bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopped    bool

	journal *journal

	jpegMu sync.RWMutex
	jpeg   []byte

	subMu   sync.RWMutex
	subs    map[int]func(Update)
	nextSub int
}

// New creates a Monitor reading from camera and detecting with det.
func New(config Config, camera capture.Camera, det detector.Detector) (*Monitor, error) {
	if camera == nil || det == nil {
		return nil, errors.New("camera and detector are required")
	}
	if err := config.Classifier.Validate(); err != nil {
		return nil, err
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = DefaultJPEGQuality
	}
	if config.Style == (overlay.Style{}) {
		config.Style = overlay.DefaultStyle()
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	m := &Monitor{
		config:     config,
		camera:     camera,
		detector:   det,
		log:        config.Logger,
		classifier: classifier.New(config.Classifier),
		subs:       make(map[int]func(Update)),
	}
	if config.Store != nil {
		m.journal = &journal{store: config.Store, log: config.Logger}
	}
	m.session = newSessionTracker(uuid.NewString(), config.Classifier)
	m.latest = m.updateLocked(classifier.Result{Status: classifier.Active})

	return m, nil
}

// Start launches the polling loop. Frames are only pulled while live.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	// Don't start if already running
	if m.stopCh != nil {
		return nil
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(m.stopCh, m.doneCh)

	m.log.WithFields(logrus.Fields{
		"session":  m.session.id,
		"interval": m.config.PollInterval,
	}).Info("monitor started")
	return nil
}

// Stop halts the loop, finishes the current session and releases the camera
// and detector. A stopped monitor cannot be restarted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	stopCh, doneCh := m.stopCh, m.doneCh
	m.stopCh, m.doneCh = nil, nil
	m.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	if err := m.SetLive(false); err != nil {
		m.log.WithError(err).Warn("error closing camera")
	}

	m.mu.Lock()
	flush := m.finishSessionLocked()
	m.mu.Unlock()
	flush()

	if err := m.detector.Close(); err != nil {
		m.log.WithError(err).Warn("error closing detector")
	}

	m.log.Info("monitor stopped")
}

// SetLive opens the camera and starts classifying frames, or stops and
// releases the camera.
func (m *Monitor) SetLive(live bool) error {
	m.mu.Lock()
	if live && m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.live == live {
		m.mu.Unlock()
		return nil
	}

	if live {
		if err := m.camera.Open(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("open camera %q: %w", m.config.Source, err)
		}
	} else if err := m.camera.Close(); err != nil {
		m.live = false
		m.mu.Unlock()
		return fmt.Errorf("close camera: %w", err)
	}

	m.live = live
	m.latest.Live = live
	u := m.latest
	m.mu.Unlock()

	m.log.WithField("live", live).Info("live monitoring toggled")
	m.publish(u)
	return nil
}

// IsLive returns whether frames are currently being classified.
func (m *Monitor) IsLive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live
}

// Restart finishes the current session and begins a new one with zeroed
// state and the same thresholds.
func (m *Monitor) Restart() (string, error) {
	m.mu.RLock()
	cfg := m.config.Classifier
	m.mu.RUnlock()
	return m.RestartWith(cfg)
}

// RestartWith begins a new session using cfg as its thresholds.
func (m *Monitor) RestartWith(cfg classifier.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return "", ErrStopped
	}
	flush := m.finishSessionLocked()

	m.config.Classifier = cfg
	m.classifier = classifier.New(cfg)
	m.session = newSessionTracker(uuid.NewString(), cfg)
	m.frames = 0
	m.latest = m.updateLocked(classifier.Result{Status: classifier.Active})
	u := m.latest
	m.mu.Unlock()
	flush()

	m.log.WithField("session", u.SessionID).Info("session restarted")
	m.publish(u)
	return u.SessionID, nil
}

// Snapshot returns the latest update.
func (m *Monitor) Snapshot() Update {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// ClassifierConfig returns the thresholds of the current session.
func (m *Monitor) ClassifierConfig() classifier.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Classifier
}

// Session returns statistics for the current session.
func (m *Monitor) Session() SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.info()
}

// LatestJPEG returns the most recent annotated frame, or nil before the first one.
func (m *Monitor) LatestJPEG() []byte {
	m.jpegMu.RLock()
	defer m.jpegMu.RUnlock()
	return m.jpeg
}

// Subscribe registers fn to receive every update. fn runs on the monitor
// goroutine and must not block. The returned func unsubscribes.
func (m *Monitor) Subscribe(fn func(Update)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Monitor) publish(u Update) {
	m.subMu.RLock()
	fns := make([]func(Update), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.RUnlock()

	for _, fn := range fns {
		fn(u)
	}
}

// updateLocked builds an Update for r. Caller holds mu.
func (m *Monitor) updateLocked(r classifier.Result) Update {
	return Update{
		SessionID: m.session.id,
		Frame:     m.frames,
		Live:      m.live,
		Result:    r,
		Timestamp: time.Now(),
	}
}

// later schedules a journal write decided under mu. The returned func performs
// it and must be called once mu is released. Caller holds mu.
func (m *Monitor) later(write func(j *journal)) func() {
	if m.journal == nil {
		return func() {}
	}
	m.journal.mu.Lock()
	return func() {
		defer m.journal.mu.Unlock()
		write(m.journal)
	}
}

// finishSessionLocked schedules the final tallies of the current session.
// Caller holds mu; the returned func runs after it is released.
func (m *Monitor) finishSessionLocked() func() {
	row := m.session.row(m.config.Source, m.classifier.State())
	return m.later(func(j *journal) { j.finish(row) })
}
