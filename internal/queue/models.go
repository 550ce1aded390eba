package queue

import (
	"time"

	"github.com/google/uuid"

	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/prompt"
)

// Status represents the lifecycle of a request.
type Status string

const (
	StatusQueued            Status = "queued"
	StatusTemplateLoaded    Status = "template_loaded"
	StatusAssetsUploaded    Status = "assets_uploaded"
	StatusPromptTransformed Status = "prompt_transformed"
	StatusSubmitted         Status = "submitted"
	StatusMonitoring        Status = "monitoring"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusTimedOut          Status = "timed_out"
)

// IsTerminal reports whether no further transitions follow s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Request is a fully assembled unit of work. It is immutable once built.
type Request struct {
	ID      string
	Profile config.WorkflowProfile
	// Text is the command text with the profile alias removed.
	Text       string
	Mode       prompt.Mode
	Assets     []chat.Asset
	Session    chat.Session
	EnqueuedAt time.Time
}

// NewRequest builds a request, keeping at most the profile's required number
// of assets.
func NewRequest(profile config.WorkflowProfile, text string, mode prompt.Mode, assets []chat.Asset, session chat.Session) *Request {
	required := profile.RequiredAssets()
	if len(assets) > required {
		assets = assets[:required]
	}
	return &Request{
		ID:      uuid.NewString(),
		Profile: profile,
		Text:    text,
		Mode:    mode,
		Assets:  append([]chat.Asset(nil), assets...),
		Session: session,
	}
}

// Summary is a read-only view of a queued request.
type Summary struct {
	ID         string    `json:"id"`
	Position   int       `json:"position"`
	Profile    string    `json:"profile"`
	Requester  string    `json:"requester"`
	Channel    string    `json:"channel"`
	Text       string    `json:"text"`
	Mode       string    `json:"mode"`
	Assets     int       `json:"assets"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func (r *Request) summary(position int) Summary {
	s := Summary{
		ID:         r.ID,
		Position:   position,
		Profile:    r.Profile.Alias,
		Text:       r.Text,
		Mode:       r.Mode.String(),
		Assets:     len(r.Assets),
		EnqueuedAt: r.EnqueuedAt,
	}
	if r.Session != nil {
		s.Requester = r.Session.RequesterID()
		s.Channel = r.Session.ChannelID()
	}
	return s
}
