package session

import (
	"fmt"
	"strings"
	"time"
)

// Transcript roles.
const (
	RoleUser  = "User"
	RoleAgent = "Agent"
)

// AddUserTranscript appends a user utterance as an elapsed-time labeled line.
func (s *Session) AddUserTranscript(text string) string {
	return s.addTranscript(RoleUser, text)
}

// AddAgentTranscript appends an agent utterance as an elapsed-time labeled line.
func (s *Session) AddAgentTranscript(text string) string {
	return s.addTranscript(RoleAgent, text)
}

func (s *Session) addTranscript(role, text string) string {
	line := fmt.Sprintf("[%s] %s: %s", formatElapsed(s.clock()().Sub(s.CreatedAt)), role, text)
	s.mu.Lock()
	s.transcript = append(s.transcript, line)
	s.mu.Unlock()
	return line
}

// Transcript returns a copy of the accumulated lines, oldest first.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TranscriptText joins the transcript into one newline-terminated block.
func (s *Session) TranscriptText() string {
	lines := s.Transcript()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func (s *Session) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
