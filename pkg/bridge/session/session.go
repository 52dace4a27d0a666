// Package session holds the per-call state object and the registry that owns
// every live call.
package session

import (
	"strings"
	"sync"
	"time"
)

// IncomingCall is the call metadata the telephony provider posts with the
// voice webhook and repeats inside the media stream start event.
type IncomingCall struct {
	CallSID       string `json:"CallSid"`
	AccountSID    string `json:"AccountSid,omitempty"`
	CallStatus    string `json:"CallStatus,omitempty"`
	Direction     string `json:"Direction,omitempty"`
	Caller        string `json:"Caller"`
	CallerCity    string `json:"CallerCity,omitempty"`
	CallerCountry string `json:"CallerCountry"`
	From          string `json:"From,omitempty"`
	FromCountry   string `json:"FromCountry,omitempty"`
	Called        string `json:"Called"`
	CalledCountry string `json:"CalledCountry,omitempty"`
	To            string `json:"To,omitempty"`
	ToCountry     string `json:"ToCountry,omitempty"`
}

// Session is the unit of one phone call's lifetime. It is created on first
// telephony contact and destroyed by the registry after finalization.
//
// All mutation normally happens on the call's dispatch loop; the mutex exists
// so the finalizer and HTTP surface can take consistent snapshots.
type Session struct {
	ID        string
	CreatedAt time.Time

	now func() time.Time

	mu         sync.Mutex
	streamSID  string
	incoming   *IncomingCall
	appID      string
	callerID   string
	transcript []string
}

// Snapshot is the serializable view of a session, used for webhook envelopes
// and the persisted call record.
type Snapshot struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"createdAt"`
	StreamSID    string        `json:"streamSid,omitempty"`
	IncomingCall *IncomingCall `json:"incomingCall,omitempty"`
	AppID        string        `json:"appId,omitempty"`
	CallerID     string        `json:"callerId,omitempty"`
	Transcript   []string      `json:"transcript"`
}

// StartStream records the stream identifier and call metadata carried by the
// telephony start event and derives the memory-scoping identifiers. Both
// fields transition from absent to present exactly once; repeated start
// events are ignored.
func (s *Session) StartStream(streamSID string, incoming IncomingCall, appName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamSID != "" {
		return false
	}
	s.streamSID = streamSID
	s.incoming = &incoming
	s.appID = deriveAppID(appName, incoming.Called)
	s.callerID = phoneDigits(incoming.Caller)
	return true
}

func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// Incoming returns the call metadata, or nil before the stream has started.
func (s *Session) Incoming() *IncomingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incoming == nil {
		return nil
	}
	cp := *s.incoming
	return &cp
}

// AppID is the per-tenant memory scope, empty before the stream has started.
func (s *Session) AppID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID
}

// CallerID is the per-caller memory scope, empty before the stream has started.
func (s *Session) CallerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callerID
}

// Snapshot copies the session into its serializable form.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		StreamSID: s.streamSID,
		AppID:     s.appID,
		CallerID:  s.callerID,
	}
	if s.incoming != nil {
		cp := *s.incoming
		snap.IncomingCall = &cp
	}
	snap.Transcript = make([]string, len(s.transcript))
	copy(snap.Transcript, s.transcript)
	return snap
}

func deriveAppID(appName, called string) string {
	digits := phoneDigits(called)
	if appName == "" {
		return digits
	}
	return appName + "_" + digits
}

func phoneDigits(number string) string {
	return strings.TrimPrefix(strings.TrimSpace(number), "+")
}
