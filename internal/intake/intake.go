package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"easel/internal/assembly"
	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/prompt"
	"easel/internal/queue"
	"easel/internal/services"
)

// MessageNoWorkflows is sent when a command arrives but no profile exists.
const MessageNoWorkflows = "No workflows are configured."

// MessageQueued confirms admission at 1-based position.
func MessageQueued(position int) string {
	return fmt.Sprintf("Queued (position %d)...", position)
}

// MessageQueueFull reports a refused request.
func MessageQueueFull(capacity int) string {
	return fmt.Sprintf("The queue is full (max: %d), please try again later.", capacity)
}

// MessageAwaitAsset asks for asset index of required.
func MessageAwaitAsset(index, required int) string {
	return fmt.Sprintf("Please send image %d of %d.", index, required)
}

// MessagePermissionDenied explains a refused profile.
func MessagePermissionDenied(authority int, alias string, required int) string {
	return fmt.Sprintf("Permission denied (level %d) for workflow %q (requires level %d).", authority, alias, required)
}

// Outcome classifies how an interaction was handled.
type Outcome string

const (
	OutcomeQueued        Outcome = "queued"
	OutcomeAwaitingAsset Outcome = "awaiting_asset"
	OutcomeRejected      Outcome = "rejected"
	OutcomeIgnored       Outcome = "ignored"
)

// Reply describes the effect of one interaction.
type Reply struct {
	Outcome   Outcome `json:"outcome"`
	Message   string  `json:"message,omitempty"`
	Position  int     `json:"position,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
	Profile   string  `json:"profile,omitempty"`
}

// Handled reports whether the interaction was consumed.
func (r Reply) Handled() bool {
	return r.Outcome != OutcomeIgnored
}

// Command is an explicit request invocation.
type Command struct {
	Text          string
	Raw           bool
	TranslateOnly bool
	Assets        []chat.Asset
}

// Worker is started after every successful enqueue.
type Worker interface {
	Trigger()
}

// ModeSelector decides the prompt mode for a new request.
type ModeSelector interface {
	SelectMode(text string, raw, translateOnly bool) prompt.Mode
}

// Options wires an Intake.
type Options struct {
	Config    *config.Config
	Assembler *assembly.Assembler
	Queue     *queue.Queue
	Modes     ModeSelector
	Worker    Worker
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Intake routes chat interactions into the assembler and the queue.
type Intake struct {
	cfg       *config.Config
	assembler *assembly.Assembler
	queue     *queue.Queue
	modes     ModeSelector
	worker    Worker
	metrics   metrics.Recorder
	logger    *slog.Logger
}

// New constructs an Intake.
func New(opts Options) *Intake {
	in := &Intake{
		cfg:       opts.Config,
		assembler: opts.Assembler,
		queue:     opts.Queue,
		modes:     opts.Modes,
		worker:    opts.Worker,
		metrics:   opts.Metrics,
		logger:    logging.NewComponentLogger(opts.Logger, "intake"),
	}
	if in.metrics == nil {
		in.metrics = metrics.Noop{}
	}
	return in
}

// SelectProfile resolves the profile named by the first word of text. When
// the first word is not an alias the default profile applies and text is kept
// whole.
func SelectProfile(cfg *config.Config, text string) (config.WorkflowProfile, string, bool) {
	words := strings.Fields(text)
	if len(words) > 0 {
		if profile, ok := cfg.Profile(words[0]); ok {
			return profile, strings.Join(words[1:], " "), true
		}
	}
	profile, ok := cfg.DefaultProfile()
	return profile, text, ok
}

// HandleCommand processes an explicit command.
func (in *Intake) HandleCommand(ctx context.Context, session chat.Session, cmd Command) Reply {
	ctx = services.WithRequester(ctx, session.RequesterID(), session.ChannelID())
	logger := logging.WithContext(ctx, in.logger)

	profile, text, ok := SelectProfile(in.cfg, cmd.Text)
	if !ok {
		in.metrics.RequestRejected(metrics.ReasonNoProfile)
		logging.WarnWithContext(logger, "command rejected", "no_profile",
			logging.String(logging.FieldImpact, "request refused"),
			logging.String(logging.FieldErrorHint, "configure at least one [[workflows]] entry"),
		)
		return in.reply(ctx, session, Reply{Outcome: OutcomeRejected, Message: MessageNoWorkflows})
	}
	if authority := session.Authority(); authority < profile.PermissionLevel {
		in.metrics.RequestRejected(metrics.ReasonPermissionDenied)
		logger.Info("command rejected",
			logging.String(logging.FieldProfile, profile.Alias),
			logging.Int("authority", authority),
			logging.Int("required", profile.PermissionLevel),
		)
		return in.reply(ctx, session, Reply{
			Outcome: OutcomeRejected,
			Profile: profile.Alias,
			Message: MessagePermissionDenied(authority, profile.Alias, profile.PermissionLevel),
		})
	}

	mode := in.modes.SelectMode(text, cmd.Raw, cmd.TranslateOnly)
	res := in.assembler.Begin(session, profile, text, mode, cmd.Assets)
	logger.Info("command accepted",
		logging.String(logging.FieldProfile, profile.Alias),
		logging.String("mode", mode.String()),
		logging.Int("assets", len(cmd.Assets)),
		logging.Int("required", profile.RequiredAssets()),
	)
	return in.apply(ctx, session, profile.Alias, res)
}

// HandleMessage offers a plain message to the requester's pending assembly.
// Messages without a pending assembly or without images are ignored.
func (in *Intake) HandleMessage(ctx context.Context, session chat.Session, assets []chat.Asset) Reply {
	if len(assets) == 0 {
		return Reply{Outcome: OutcomeIgnored}
	}
	ctx = services.WithRequester(ctx, session.RequesterID(), session.ChannelID())
	res := in.assembler.Continue(session, assets)
	return in.apply(ctx, session, "", res)
}

func (in *Intake) apply(ctx context.Context, session chat.Session, alias string, res assembly.Result) Reply {
	defer in.metrics.SetPendingAssemblies(in.assembler.Len())
	switch res.Outcome {
	case assembly.AwaitingAsset:
		return in.reply(ctx, session, Reply{
			Outcome: OutcomeAwaitingAsset,
			Profile: alias,
			Message: MessageAwaitAsset(res.Next, res.Required),
		})
	case assembly.Ready:
		return in.enqueue(ctx, session, res.Request)
	default:
		return Reply{Outcome: OutcomeIgnored}
	}
}

func (in *Intake) enqueue(ctx context.Context, session chat.Session, req *queue.Request) Reply {
	ctx = services.WithRequestID(services.WithProfile(ctx, req.Profile.Alias), req.ID)
	logger := logging.WithContext(ctx, in.logger)

	position, err := in.queue.Enqueue(req)
	if errors.Is(err, queue.ErrQueueFull) {
		in.metrics.RequestRejected(metrics.ReasonQueueFull)
		logging.WarnWithContext(logger, "request rejected", "queue_full",
			logging.Int("capacity", in.queue.Capacity()),
			logging.String(logging.FieldImpact, "request refused, requester must retry"),
			logging.String(logging.FieldErrorHint, "raise queue.capacity if this happens often"),
		)
		return in.reply(ctx, session, Reply{
			Outcome:   OutcomeRejected,
			Profile:   req.Profile.Alias,
			RequestID: req.ID,
			Message:   MessageQueueFull(in.queue.Capacity()),
		})
	}
	in.metrics.RequestEnqueued(req.Profile.Alias)
	in.metrics.SetQueueDepth(in.queue.Len())
	logger.Info("request enqueued",
		logging.Int("position", position),
		logging.String("mode", req.Mode.String()),
	)
	reply := in.reply(ctx, session, Reply{
		Outcome:   OutcomeQueued,
		Profile:   req.Profile.Alias,
		RequestID: req.ID,
		Position:  position,
		Message:   MessageQueued(position),
	})
	if in.worker != nil {
		in.worker.Trigger()
	}
	return reply
}

func (in *Intake) reply(ctx context.Context, session chat.Session, reply Reply) Reply {
	if reply.Message == "" {
		return reply
	}
	if err := session.Send(ctx, reply.Message); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, in.logger), "reply delivery failed", "reply_delivery_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "requester missed an intake message"),
			logging.String(logging.FieldErrorHint, "check the chat bridge reply endpoint"),
		)
	}
	return reply
}
