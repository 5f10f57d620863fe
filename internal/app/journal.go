package app

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/drowsewatch/internal/store"
)

// journal writes session rows and status transitions to the store.
//
// Writes are decided under Monitor.mu but performed after it is released.
// Monitor.later takes journal.mu before Monitor.mu is dropped, so writes reach
// the store in the order they were decided. Lock order is Monitor.mu, then
// journal.mu.
type journal struct {
	mu    sync.Mutex
	store *store.Store
	log   logrus.FieldLogger
	// open is the id of the session row that exists and is not yet finished.
	open string
}

// record appends event, creating the session row on first use. Caller holds j.mu.
func (j *journal) record(session *store.Session, event *store.Event) {
	if j.open != session.ID {
		if err := j.store.Sessions().Create(session); err != nil {
			j.log.WithError(err).WithField("session", session.ID).Error("failed to journal session")
			return
		}
		j.open = session.ID
	}

	if err := j.store.Events().Append(event); err != nil {
		j.log.WithError(err).WithField("session", session.ID).Error("failed to journal event")
	}
}

// finish writes the final tallies of a journaled session. Caller holds j.mu.
func (j *journal) finish(session *store.Session) {
	if j.open != session.ID {
		return
	}
	j.open = ""

	if err := j.store.Sessions().Finish(session); err != nil {
		j.log.WithError(err).WithField("session", session.ID).Error("failed to finish session")
		return
	}

	j.log.WithFields(logrus.Fields{
		"session":    session.ID,
		"frames":     session.Frames,
		"eye_closed": session.EyeClosedCount,
		"yawns":      session.YawnCount,
	}).Info("session finished")
}

// newEvent builds the journal entry for a status transition.
func newEvent(u Update) *store.Event {
	event := &store.Event{
		SessionID:      u.SessionID,
		Status:         u.Status.Key(),
		EyeClosedCount: u.EyeClosedCount,
		YawnCount:      u.YawnCount,
	}
	if u.Metrics != nil {
		if u.Metrics.ReliableEAR() {
			ear := u.Metrics.EAR
			event.EAR = &ear
		}
		if u.Metrics.ReliableMAR() {
			mar := u.Metrics.MAR
			event.MAR = &mar
		}
	}
	return event
}
