package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/drowsewatch/internal/app"
	"github.com/ayusman/drowsewatch/internal/classifier"
)

// Monitor is the part of app.Monitor the HTTP layer drives.
type Monitor interface {
	Snapshot() app.Update
	Session() app.SessionInfo
	ClassifierConfig() classifier.Config
	IsLive() bool
	SetLive(live bool) error
	RestartWith(cfg classifier.Config) (string, error)
	LatestJPEG() []byte
	Subscribe(fn func(app.Update)) func()
}

// MonitorHandler serves the live status and the monitoring controls.
type MonitorHandler struct {
	monitor Monitor
}

// NewMonitorHandler creates a new MonitorHandler for m.
func NewMonitorHandler(m Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: m}
}

type thresholdsResponse struct {
	EyeClosedThreshold float64 `json:"ear_threshold"`
	YawnThreshold      float64 `json:"mar_threshold"`
	EyeConsecFrames    int     `json:"eye_frames"`
	YawnConsecFrames   int     `json:"yawn_frames"`
	ResetOnNoFace      bool    `json:"reset_on_no_face"`
}

type statusResponse struct {
	Label      string             `json:"label"`
	Drowsy     bool               `json:"drowsy"`
	Update     app.Update         `json:"update"`
	Session    app.SessionInfo    `json:"session"`
	Thresholds thresholdsResponse `json:"thresholds"`
}

type liveRequest struct {
	Live *bool `json:"live"`
}

type liveResponse struct {
	Live bool `json:"live"`
}

// restartRequest overrides individual thresholds of the current session.
type restartRequest struct {
	EyeClosedThreshold *float64 `json:"ear_threshold"`
	YawnThreshold      *float64 `json:"mar_threshold"`
	EyeConsecFrames    *int     `json:"eye_frames"`
	YawnConsecFrames   *int     `json:"yawn_frames"`
	ResetOnNoFace      *bool    `json:"reset_on_no_face"`
}

type restartResponse struct {
	SessionID  string             `json:"session_id"`
	Thresholds thresholdsResponse `json:"thresholds"`
}

func toThresholds(c classifier.Config) thresholdsResponse {
	return thresholdsResponse{
		EyeClosedThreshold: c.EyeClosedThreshold,
		YawnThreshold:      c.YawnThreshold,
		EyeConsecFrames:    c.EyeConsecFrames,
		YawnConsecFrames:   c.YawnConsecFrames,
		ResetOnNoFace:      c.ResetOnNoFace,
	}
}

// Status handles GET /api/status.
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	u := h.monitor.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Label:      u.Status.String(),
		Drowsy:     u.Status.IsDrowsy(),
		Update:     u,
		Session:    h.monitor.Session(),
		Thresholds: toThresholds(h.monitor.ClassifierConfig()),
	})
}

// Live handles GET and POST /api/live. POST takes {"live": bool}.
func (h *MonitorHandler) Live(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, liveResponse{Live: h.monitor.IsLive()})
	case http.MethodPost:
		var req liveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Live == nil {
			writeError(w, http.StatusBadRequest, "live is required")
			return
		}

		if err := h.monitor.SetLive(*req.Live); err != nil {
			if errors.Is(err, app.ErrStopped) {
				writeError(w, http.StatusConflict, "Monitor is stopped")
				return
			}
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, liveResponse{Live: h.monitor.IsLive()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Restart handles POST /api/restart. An empty body keeps the current thresholds.
func (h *MonitorHandler) Restart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req restartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	cfg := h.monitor.ClassifierConfig()
	if req.EyeClosedThreshold != nil {
		cfg.EyeClosedThreshold = *req.EyeClosedThreshold
	}
	if req.YawnThreshold != nil {
		cfg.YawnThreshold = *req.YawnThreshold
	}
	if req.EyeConsecFrames != nil {
		cfg.EyeConsecFrames = *req.EyeConsecFrames
	}
	if req.YawnConsecFrames != nil {
		cfg.YawnConsecFrames = *req.YawnConsecFrames
	}
	if req.ResetOnNoFace != nil {
		cfg.ResetOnNoFace = *req.ResetOnNoFace
	}

	id, err := h.monitor.RestartWith(cfg)
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrStopped):
			writeError(w, http.StatusConflict, "Monitor is stopped")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to restart session")
		}
		return
	}

	writeJSON(w, http.StatusOK, restartResponse{
		SessionID:  id,
		Thresholds: toThresholds(cfg),
	})
}
