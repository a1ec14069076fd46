package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// sessionIDBytes gives 256 bits of entropy per session id.
const sessionIDBytes = 32

// DeviceInfo is the fingerprint captured when a session is created.
type DeviceInfo struct {
	IP         string `json:"ip" bson:"ip"`
	UserAgent  string `json:"user_agent" bson:"user_agent"`
	Browser    string `json:"browser" bson:"browser"`
	OS         string `json:"os" bson:"os"`
	DeviceType string `json:"device_type" bson:"device_type"`
	Location   string `json:"location" bson:"location"`
}

// Signature identifies a browser/OS pair for new-device detection.
func (d DeviceInfo) Signature() string {
	return d.Browser + "-" + d.OS
}

// Session is a single authenticated login embedded in its account.
// Ended sessions are kept for audit until MaxSessionHistory pushes them out.
type Session struct {
	SessionID    string     `json:"session_id" bson:"session_id"`
	DeviceInfo   DeviceInfo `json:"device_info" bson:"device_info"`
	LoginTime    time.Time  `json:"login_time" bson:"login_time"`
	LastActivity time.Time  `json:"last_activity" bson:"last_activity"`
	ExpiresAt    time.Time  `json:"expires_at" bson:"expires_at"`
	IsActive     bool       `json:"is_active" bson:"is_active"`
	EndedAt      *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
}

// Usable reports whether the session can still authorize requests at now.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now) && now.Sub(s.LastActivity) <= SessionInactivityCutoff
}

func (s *Session) deactivate(now time.Time) {
	if !s.IsActive {
		return
	}
	s.IsActive = false
	s.EndedAt = &now
}

// NewSessionID returns a random hex token.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionIDGeneration, err)
	}
	return hex.EncodeToString(buf), nil
}

// AddSession sweeps stale sessions, evicts the oldest active one when the cap
// is reached, and appends a fresh session. It returns the new id and the ids
// of any evicted sessions.
func (a *Account) AddSession(device DeviceInfo, now time.Time) (string, []string, error) {
	id, err := NewSessionID()
	if err != nil {
		return "", nil, err
	}

	a.CleanExpiredSessions(now)

	var evicted []string
	for a.countActive() >= MaxActiveSessions {
		oldest := a.oldestActive()
		if oldest < 0 {
			break
		}
		a.ActiveSessions[oldest].deactivate(now)
		evicted = append(evicted, a.ActiveSessions[oldest].SessionID)
	}

	a.ActiveSessions = append(a.ActiveSessions, Session{
		SessionID:    id,
		DeviceInfo:   device,
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(SessionLifetime),
		IsActive:     true,
	})
	a.pruneEndedSessions()
	return id, evicted, nil
}

// pruneEndedSessions drops the oldest ended sessions beyond MaxSessionHistory.
// Active sessions are never dropped.
func (a *Account) pruneEndedSessions() {
	excess := len(a.ActiveSessions) - MaxSessionHistory
	if excess <= 0 {
		return
	}
	kept := make([]Session, 0, MaxSessionHistory)
	for _, s := range a.ActiveSessions {
		if excess > 0 && !s.IsActive {
			excess--
			continue
		}
		kept = append(kept, s)
	}
	a.ActiveSessions = kept
}

// UpdateSessionActivity touches an active session. Unknown or inactive ids are ignored.
func (a *Account) UpdateSessionActivity(sessionID string, now time.Time) bool {
	for i := range a.ActiveSessions {
		s := &a.ActiveSessions[i]
		if s.SessionID == sessionID && s.IsActive {
			s.LastActivity = now
			return true
		}
	}
	return false
}

// RemoveSession deactivates one session. It is idempotent and reports whether
// the id belongs to this account at all.
func (a *Account) RemoveSession(sessionID string, now time.Time) bool {
	for i := range a.ActiveSessions {
		if a.ActiveSessions[i].SessionID == sessionID {
			a.ActiveSessions[i].deactivate(now)
			return true
		}
	}
	return false
}

// RemoveAllSessions deactivates every session and returns how many were active.
func (a *Account) RemoveAllSessions(now time.Time) int {
	return a.RemoveAllOtherSessions("", now)
}

// RemoveAllOtherSessions deactivates every session except exceptID.
func (a *Account) RemoveAllOtherSessions(exceptID string, now time.Time) int {
	n := 0
	for i := range a.ActiveSessions {
		s := &a.ActiveSessions[i]
		if s.IsActive && s.SessionID != exceptID {
			s.deactivate(now)
			n++
		}
	}
	return n
}

// CleanExpiredSessions deactivates sessions past expiry or idle beyond the
// inactivity cutoff and returns how many it ended.
func (a *Account) CleanExpiredSessions(now time.Time) int {
	n := 0
	for i := range a.ActiveSessions {
		s := &a.ActiveSessions[i]
		if s.IsActive && !s.Usable(now) {
			s.deactivate(now)
			n++
		}
	}
	return n
}

// FindActiveSession returns the session if it is flagged active and not past expiry.
func (a *Account) FindActiveSession(sessionID string, now time.Time) (*Session, bool) {
	for i := range a.ActiveSessions {
		s := &a.ActiveSessions[i]
		if s.SessionID == sessionID {
			if s.IsActive && s.ExpiresAt.After(now) {
				return s, true
			}
			return nil, false
		}
	}
	return nil, false
}

// CurrentSessions lists usable sessions, most recently active first.
func (a *Account) CurrentSessions(now time.Time) []Session {
	out := make([]Session, 0, MaxActiveSessions)
	for _, s := range a.ActiveSessions {
		if s.Usable(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// ActiveSessionCount counts usable sessions at now.
func (a *Account) ActiveSessionCount(now time.Time) int {
	n := 0
	for i := range a.ActiveSessions {
		if a.ActiveSessions[i].Usable(now) {
			n++
		}
	}
	return n
}

func (a *Account) countActive() int {
	n := 0
	for i := range a.ActiveSessions {
		if a.ActiveSessions[i].IsActive {
			n++
		}
	}
	return n
}

func (a *Account) oldestActive() int {
	idx := -1
	for i := range a.ActiveSessions {
		s := &a.ActiveSessions[i]
		if !s.IsActive {
			continue
		}
		if idx < 0 || s.LoginTime.Before(a.ActiveSessions[idx].LoginTime) {
			idx = i
		}
	}
	return idx
}
