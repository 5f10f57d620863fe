package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/capture"
	"github.com/ayusman/drowsewatch/internal/classifier"
	"github.com/ayusman/drowsewatch/internal/detector"
	"github.com/ayusman/drowsewatch/internal/logging"
	"github.com/ayusman/drowsewatch/internal/store"
)

// funcHook runs fn for every error logged.
type funcHook struct {
	fn func(*logrus.Entry)
}

func (h funcHook) Levels() []logrus.Level { return []logrus.Level{logrus.ErrorLevel} }
func (h funcHook) Fire(e *logrus.Entry) error {
	h.fn(e)
	return nil
}

func TestMonitor_JournalWritesDoNotBlockReaders(t *testing.T) {
	// A closed store fails every write, which is logged while the write is in progress.
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	st.Close()

	logger := logging.Discard()
	det := detector.NewMockDetector()
	det.SetFace(detector.AlertLandmarks())

	m, err := New(Config{
		Classifier: classifier.DefaultConfig(),
		Store:      st,
		Logger:     logger,
	}, capture.NewMockCamera(nil, false), det)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(m.Stop)

	var (
		mu      sync.Mutex
		writes  int
		blocked int
	)
	logger.AddHook(funcHook{fn: func(*logrus.Entry) {
		done := make(chan struct{})
		go func() {
			m.Snapshot()
			m.IsLive()
			close(done)
		}()

		mu.Lock()
		defer mu.Unlock()
		writes++
		select {
		case <-done:
		case <-time.After(time.Second):
			blocked++
		}
	}})

	if _, err := m.ProcessFrame(newFrame(t)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if writes == 0 {
		t.Fatal("expected the journal write to fail and be logged")
	}
	if blocked != 0 {
		t.Errorf("readers waited on %d of %d journal writes", blocked, writes)
	}
}

func TestMonitor_RestartJournalsInOrder(t *testing.T) {
	st := newTestStore(t)
	m, det, _ := newTestMonitor(t, st)
	det.SetFace(detector.EyesClosedLandmarks())

	var ids []string
	for i := 0; i < 3; i++ {
		if _, err := m.ProcessFrame(newFrame(t)); err != nil {
			t.Fatalf("ProcessFrame() error = %v", err)
		}
		ids = append(ids, m.Snapshot().SessionID)
		if _, err := m.Restart(); err != nil {
			t.Fatalf("Restart() error = %v", err)
		}
	}

	for _, id := range ids {
		row, err := st.Sessions().GetByID(id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		if row.Active() || row.Frames != 1 {
			t.Errorf("session %s = %+v, want finished after one frame", id, row)
		}
		if n, _ := st.Events().CountBySession(id); n != 1 {
			t.Errorf("session %s has %d events, want 1", id, n)
		}
	}
}
