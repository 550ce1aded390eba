package assembly

import (
	"log/slog"
	"sync"
	"time"

	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/prompt"
	"easel/internal/queue"
)

// Key identifies the conversation a pending assembly belongs to.
type Key struct {
	Requester string
	Channel   string
}

// KeyOf returns the assembly key for session.
func KeyOf(session chat.Session) Key {
	return Key{Requester: session.RequesterID(), Channel: session.ChannelID()}
}

func (k Key) String() string {
	return k.Requester + "#" + k.Channel
}

// Pending is a request still collecting assets. len(Collected) < Required
// holds for every stored entry.
type Pending struct {
	Profile   config.WorkflowProfile
	Text      string
	Mode      prompt.Mode
	Collected []chat.Asset
	Required  int
	Session   chat.Session
	UpdatedAt time.Time
}

// Outcome classifies what an interaction did to the assembler.
type Outcome int

const (
	// Ignored means the interaction did not touch any assembly.
	Ignored Outcome = iota
	// AwaitingAsset means an assembly is stored and wants asset Next of Required.
	AwaitingAsset
	// Ready means Request is complete and should be enqueued.
	Ready
)

// Result reports the effect of one interaction.
type Result struct {
	Outcome  Outcome
	Request  *queue.Request
	Next     int
	Required int
}

// Assembler keeps at most one pending assembly per key.
type Assembler struct {
	mu      sync.Mutex
	pending map[Key]*Pending
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithTTL expires assemblies idle for longer than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(a *Assembler) {
		a.ttl = ttl
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Assembler.
func New(logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		pending: make(map[Key]*Pending),
		now:     time.Now,
		logger:  logging.NewComponentLogger(logger, "assembly"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Begin handles a command interaction. When enough assets are supplied the
// request is built immediately from the first Required of them; otherwise a
// pending assembly replaces any existing one for the session's key and
// collection starts at asset 1.
func (a *Assembler) Begin(session chat.Session, profile config.WorkflowProfile, text string, mode prompt.Mode, supplied []chat.Asset) Result {
	required := profile.RequiredAssets()
	if len(supplied) >= required {
		return Result{
			Outcome:  Ready,
			Request:  queue.NewRequest(profile, text, mode, supplied, session),
			Required: required,
		}
	}

	key := KeyOf(session)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, replaced := a.pending[key]; replaced {
		a.logger.Info("pending assembly replaced", logging.String("key", key.String()))
	}
	a.pending[key] = &Pending{
		Profile:   profile,
		Text:      text,
		Mode:      mode,
		Collected: make([]chat.Asset, 0, required),
		Required:  required,
		Session:   session,
		UpdatedAt: a.now(),
	}
	a.logger.Info("pending assembly started",
		logging.String("key", key.String()),
		logging.String(logging.FieldProfile, profile.Alias),
		logging.Int("required", required),
	)
	return Result{Outcome: AwaitingAsset, Next: 1, Required: required}
}

// Continue handles a non-command interaction. Only the first supplied asset
// is consumed. Interactions without a pending entry or without assets are
// ignored.
func (a *Assembler) Continue(session chat.Session, supplied []chat.Asset) Result {
	key := KeyOf(session)
	a.mu.Lock()
	defer a.mu.Unlock()

	pending, ok := a.pending[key]
	if !ok {
		return Result{Outcome: Ignored}
	}
	if a.expired(pending) {
		delete(a.pending, key)
		logging.WarnWithContext(a.logger, "pending assembly expired", "assembly_expired",
			logging.String("key", key.String()),
			logging.Int("collected", len(pending.Collected)),
			logging.String(logging.FieldImpact, "request dropped, requester must resend the command"),
		)
		return Result{Outcome: Ignored}
	}
	if len(supplied) == 0 {
		return Result{Outcome: Ignored}
	}

	pending.Collected = append(pending.Collected, supplied[0])
	pending.UpdatedAt = a.now()
	if len(pending.Collected) < pending.Required {
		return Result{Outcome: AwaitingAsset, Next: len(pending.Collected) + 1, Required: pending.Required}
	}

	delete(a.pending, key)
	req := queue.NewRequest(pending.Profile, pending.Text, pending.Mode, pending.Collected, pending.Session)
	a.logger.Info("pending assembly complete",
		logging.String("key", key.String()),
		logging.String(logging.FieldRequestID, req.ID),
	)
	return Result{Outcome: Ready, Request: req, Required: pending.Required}
}

// Pending returns a copy of the assembly stored for key.
func (a *Assembler) Pending(key Key) (Pending, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[key]
	if !ok {
		return Pending{}, false
	}
	cp := *p
	cp.Collected = append([]chat.Asset(nil), p.Collected...)
	return cp, true
}

// Len returns the number of pending assemblies.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Sweep drops expired assemblies and returns how many were removed. It is a
// no-op when no TTL is configured.
func (a *Assembler) Sweep() int {
	if a.ttl <= 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for key, p := range a.pending {
		if a.expired(p) {
			delete(a.pending, key)
			removed++
		}
	}
	if removed > 0 {
		a.logger.Info("expired assemblies swept", logging.Int("removed", removed))
	}
	return removed
}

func (a *Assembler) expired(p *Pending) bool {
	return a.ttl > 0 && a.now().Sub(p.UpdatedAt) > a.ttl
}
