package model

import (
	"time"

	"github.com/cloudtrack/certprep/internal/exam"
)

// ActiveSession is the stored record for a user's current exam attempt.
// SyncedAt is the wall-clock instant the session clock was last advanced to.
type ActiveSession struct {
	UserID   string        `json:"user_id"`
	Session  *exam.Session `json:"session"`
	SyncedAt time.Time     `json:"synced_at"`
}

// Running reports whether the attempt is still in progress at now, counting
// time that has passed since the last sync.
func (a *ActiveSession) Running(now time.Time) bool {
	if a.Session == nil || a.Session.Status != exam.StatusInProgress {
		return false
	}
	elapsed := int(now.Sub(a.SyncedAt) / time.Second)
	return elapsed < a.Session.RemainingSeconds
}
