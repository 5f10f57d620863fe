// Package classifier turns per-frame eye and mouth ratios into a debounced
// driver alertness status.
//
// Each condition (eyes closed, yawning) keeps its own run length: the number of
// consecutive frames the condition has held. Once a run reaches its debounce
// threshold the condition is Triggered, and its event count grows by one on
// every further qualifying frame, not once per episode. A continuous closure
// therefore keeps raising the eye closed count for as long as it lasts.
package classifier

import (
	"errors"
	"fmt"

	"github.com/ayusman/drowsewatch/internal/ratio"
)

// Status is the alertness state reported for a frame.
type Status int

const (
	// Active means no drowsiness condition is triggered.
	Active Status = iota
	// EyesClosedDrowsy means the eyes have been closed for at least EyeConsecFrames frames.
	EyesClosedDrowsy
	// YawningDrowsy means the mouth has been open for at least YawnConsecFrames frames.
	YawningDrowsy
	// NoFaceDetected means the landmark source found no face in the frame.
	NoFaceDetected
)

// String returns the label shown to the driver.
func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case EyesClosedDrowsy:
		return "DROWSY - Eyes Closed"
	case YawningDrowsy:
		return "DROWSY - Yawning"
	case NoFaceDetected:
		return "No Face Detected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Key returns a stable machine-readable name for the status.
func (s Status) Key() string {
	switch s {
	case Active:
		return "active"
	case EyesClosedDrowsy:
		return "eyes_closed"
	case YawningDrowsy:
		return "yawning"
	case NoFaceDetected:
		return "no_face"
	default:
		return "unknown"
	}
}

// IsDrowsy reports whether the status is one of the drowsy states.
func (s Status) IsDrowsy() bool {
	return s == EyesClosedDrowsy || s == YawningDrowsy
}

// MarshalText encodes the status by its key.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Key()), nil
}

// UnmarshalText decodes a status key.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus returns the status with the given key.
func ParseStatus(key string) (Status, error) {
	for _, s := range []Status{Active, EyesClosedDrowsy, YawningDrowsy, NoFaceDetected} {
		if s.Key() == key {
			return s, nil
		}
	}
	return Active, fmt.Errorf("unknown status %q", key)
}

// Default thresholds.
const (
	DefaultEyeClosedThreshold = 0.2
	DefaultYawnThreshold      = 0.4
	DefaultEyeConsecFrames    = 5
	DefaultYawnConsecFrames   = 3
)

// ErrInvalidConfig is returned by Validate for unusable thresholds.
var ErrInvalidConfig = errors.New("invalid classifier config")

// Config holds the thresholds for one monitoring session.
type Config struct {
	// EyeClosedThreshold is the EAR below which the eyes count as closed.
	EyeClosedThreshold float64
	// YawnThreshold is the MAR above which the mouth counts as yawning.
	YawnThreshold float64
	// EyeConsecFrames is the run length at which eye closure is confirmed.
	EyeConsecFrames int
	// YawnConsecFrames is the run length at which a yawn is confirmed.
	YawnConsecFrames int
	// ResetOnNoFace clears both run lengths on frames without a face. When false
	// (the default) a detection dropout leaves in-progress runs untouched.
	ResetOnNoFace bool
}

// DefaultConfig returns a Config with the default thresholds.
func DefaultConfig() Config {
	return Config{
		EyeClosedThreshold: DefaultEyeClosedThreshold,
		YawnThreshold:      DefaultYawnThreshold,
		EyeConsecFrames:    DefaultEyeConsecFrames,
		YawnConsecFrames:   DefaultYawnConsecFrames,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if !ratio.IsReliable(c.EyeClosedThreshold) || c.EyeClosedThreshold <= 0 {
		return fmt.Errorf("%w: eye closed threshold %v", ErrInvalidConfig, c.EyeClosedThreshold)
	}
	if !ratio.IsReliable(c.YawnThreshold) || c.YawnThreshold <= 0 {
		return fmt.Errorf("%w: yawn threshold %v", ErrInvalidConfig, c.YawnThreshold)
	}
	if c.EyeConsecFrames < 1 {
		return fmt.Errorf("%w: eye consecutive frames %d", ErrInvalidConfig, c.EyeConsecFrames)
	}
	if c.YawnConsecFrames < 1 {
		return fmt.Errorf("%w: yawn consecutive frames %d", ErrInvalidConfig, c.YawnConsecFrames)
	}
	return nil
}

// State is the classifier memory carried from frame to frame.
type State struct {
	EyeClosedRunLength  int `json:"eye_closed_run_length"`
	YawnRunLength       int `json:"yawn_run_length"`
	EyeClosedEventCount int `json:"eye_closed_count"`
	YawnEventCount      int `json:"yawn_count"`
}

// Result is the outcome of classifying one frame.
type Result struct {
	Status         Status              `json:"status"`
	EyeClosedCount int                 `json:"eye_closed_count"`
	YawnCount      int                 `json:"yawn_count"`
	EyeClosedRun   int                 `json:"eye_closed_run"`
	YawnRun        int                 `json:"yawn_run"`
	Metrics        *ratio.FrameMetrics `json:"metrics,omitempty"`
}

// Classifier applies hysteresis to a stream of frame metrics.
// It is owned by a single monitoring session and is not safe for concurrent use.
type Classifier struct {
	config Config
	state  State
}

// New creates a Classifier with a zeroed state.
func New(config Config) *Classifier {
	return &Classifier{config: config}
}

// Config returns the thresholds in use.
func (c *Classifier) Config() Config {
	return c.config
}

// State returns a copy of the current state.
func (c *Classifier) State() State {
	return c.state
}

// Reset zeroes the run lengths and event counts.
func (c *Classifier) Reset() {
	c.state = State{}
}

// Classify consumes one frame. A nil m means no face was detected.
//
// The eye condition is evaluated before the mouth condition, so when both are
// triggered on the same frame the yawning status wins.
func (c *Classifier) Classify(m *ratio.FrameMetrics) Result {
	if m == nil {
		if c.config.ResetOnNoFace {
			c.state.EyeClosedRunLength = 0
			c.state.YawnRunLength = 0
		}
		return c.result(NoFaceDetected, nil)
	}

	status := Active

	eyesClosed := m.ReliableEAR() && m.EAR < c.config.EyeClosedThreshold
	if c.step(eyesClosed, &c.state.EyeClosedRunLength, &c.state.EyeClosedEventCount, c.config.EyeConsecFrames) {
		status = EyesClosedDrowsy
	}

	yawning := m.ReliableMAR() && m.MAR > c.config.YawnThreshold
	if c.step(yawning, &c.state.YawnRunLength, &c.state.YawnEventCount, c.config.YawnConsecFrames) {
		status = YawningDrowsy
	}

	metrics := *m
	return c.result(status, &metrics)
}

// step advances one condition and reports whether it is triggered on this frame.
func (c *Classifier) step(condition bool, run, events *int, consec int) bool {
	if !condition {
		*run = 0
		return false
	}
	*run++
	if *run >= consec {
		*events++
		return true
	}
	return false
}

func (c *Classifier) result(status Status, m *ratio.FrameMetrics) Result {
	return Result{
		Status:         status,
		EyeClosedCount: c.state.EyeClosedEventCount,
		YawnCount:      c.state.YawnEventCount,
		EyeClosedRun:   c.state.EyeClosedRunLength,
		YawnRun:        c.state.YawnRunLength,
		Metrics:        m,
	}
}
