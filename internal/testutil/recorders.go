package testutil

import (
	"context"
	"sync"

	"libshare/internal/libshare"
)

// RecordingSink captures emitted events for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	events []libshare.Event
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Emit(ev libshare.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything emitted so far.
func (s *RecordingSink) Events() []libshare.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]libshare.Event, len(s.events))
	copy(out, s.events)
	return out
}

// SentMail is one message captured by a RecordingMailer.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer captures outgoing mail for assertions. Set Err to make
// every Send fail.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

func NewRecordingMailer() *RecordingMailer {
	return &RecordingMailer{}
}

func (m *RecordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *RecordingMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMail, len(m.sent))
	copy(out, m.sent)
	return out
}
