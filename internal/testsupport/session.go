package testsupport

import (
	"context"
	"sync"
)

// Session is a chat.Session that records everything sent through it.
type Session struct {
	Requester string
	Channel   string
	Level     int

	mu       sync.Mutex
	messages []string
	images   []string
	notify   chan struct{}
}

// NewSession returns a recording session for requester in channel.
func NewSession(requester, channel string, level int) *Session {
	return &Session{Requester: requester, Channel: channel, Level: level, notify: make(chan struct{}, 64)}
}

func (s *Session) RequesterID() string { return s.Requester }
func (s *Session) ChannelID() string   { return s.Channel }
func (s *Session) Authority() int      { return s.Level }

func (s *Session) Send(_ context.Context, text string) error {
	s.mu.Lock()
	s.messages = append(s.messages, text)
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Session) SendImage(_ context.Context, url string) error {
	s.mu.Lock()
	s.images = append(s.images, url)
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Session) signal() {
	if s.notify == nil {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Messages returns a copy of the text replies sent so far.
func (s *Session) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Images returns a copy of the image references sent so far.
func (s *Session) Images() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.images...)
}

// Last returns the most recent text reply, or "" when none was sent.
func (s *Session) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}
