package prompt

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"easel/internal/logging"
)

// Mode selects how request text is rewritten before templating.
type Mode int

const (
	// ModeEngineer rewrites text into a structured editing instruction.
	ModeEngineer Mode = iota
	// ModeTranslate requests a literal translation.
	ModeTranslate
	// ModeRaw passes text through unchanged.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeTranslate:
		return "translate"
	default:
		return "engineer"
	}
}

// User-facing notices emitted by Transform.
const (
	NoticeMissingCredential = "(Note: prompt engineering is enabled but no API key is configured; using the original prompt.)"
	NoticeTranslateFailed   = "Translation failed, using the original prompt."
	NoticeEngineerFailed    = "Prompt engineering failed, using the original prompt."
)

var (
	imgTagPattern   = regexp.MustCompile(`<img[^>]*>`)
	errEmptyRewrite = errors.New("rewriter returned empty text")
)

// Rewriter is the external text service.
type Rewriter interface {
	Translate(ctx context.Context, text string) (string, error)
	Engineer(ctx context.Context, text string) (string, error)
}

// Notifier delivers notices to the requester.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Options configures a Pipeline.
type Options struct {
	// Enabled turns rewriting on. When false every mode behaves as raw.
	Enabled bool
	// BypassPhrase forces raw mode when the text equals it, ignoring case.
	BypassPhrase string
	// Rewriter is nil when no credential is configured.
	Rewriter Rewriter
	Logger   *slog.Logger
}

// Pipeline applies the configured text transform to request text.
type Pipeline struct {
	enabled  bool
	bypass   string
	rewriter Rewriter
	logger   *slog.Logger
}

// NewPipeline constructs a pipeline.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		enabled:  opts.Enabled,
		bypass:   fold(opts.BypassPhrase),
		rewriter: opts.Rewriter,
		logger:   logging.NewComponentLogger(opts.Logger, "prompt"),
	}
}

// SelectMode picks the mode for a request from its flags and text.
func (p *Pipeline) SelectMode(text string, raw, translateOnly bool) Mode {
	if raw || p.IsBypass(text) {
		return ModeRaw
	}
	if translateOnly {
		return ModeTranslate
	}
	return ModeEngineer
}

// IsBypass reports whether text equals the configured bypass phrase.
func (p *Pipeline) IsBypass(text string) bool {
	if p.bypass == "" {
		return false
	}
	return fold(text) == p.bypass
}

// fold builds a fresh Caser per call; Casers are not safe for concurrent use.
func fold(text string) string {
	return cases.Fold().String(strings.TrimSpace(text))
}

// Clean strips inline image markup and surrounding whitespace from text.
func Clean(text string) string {
	return strings.TrimSpace(norm.NFC.String(imgTagPattern.ReplaceAllString(text, "")))
}

// Transform returns the text to write into the template. It never fails: a
// rewriter error is logged, reported through notifier once, and the cleaned
// original text is returned.
func (p *Pipeline) Transform(ctx context.Context, text string, mode Mode, notifier Notifier) string {
	clean := Clean(text)
	if clean == "" || !p.enabled {
		return clean
	}
	logger := logging.WithContext(ctx, p.logger)
	if p.rewriter == nil {
		logger.Warn("prompt rewriting enabled without credential",
			logging.String(logging.FieldEventType, "prompt_credential_missing"),
			logging.String(logging.FieldErrorHint, "set prompt_engineer.api_key or DEEPSEEK_API_KEY"),
		)
		p.notify(ctx, notifier, NoticeMissingCredential)
		return clean
	}

	var (
		out    string
		err    error
		notice string
	)
	switch mode {
	case ModeRaw:
		logger.Info("prompt rewriting skipped", logging.String("mode", mode.String()))
		return clean
	case ModeTranslate:
		out, err = p.rewriter.Translate(ctx, clean)
		notice = NoticeTranslateFailed
	default:
		out, err = p.rewriter.Engineer(ctx, clean)
		notice = NoticeEngineerFailed
	}
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = errEmptyRewrite
	}
	if err != nil {
		logging.WarnWithContext(logger, "prompt rewrite failed", "prompt_rewrite_failed",
			logging.String("mode", mode.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "original prompt used"),
			logging.String(logging.FieldErrorHint, "check DeepSeek availability and API key"),
		)
		p.notify(ctx, notifier, notice)
		return clean
	}
	logger.Info("prompt rewritten",
		logging.String("mode", mode.String()),
		logging.String("original", clean),
		logging.String("rewritten", out),
	)
	return out
}

func (p *Pipeline) notify(ctx context.Context, notifier Notifier, text string) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, text); err != nil {
		p.logger.Debug("prompt notice delivery failed", logging.Error(err))
	}
}
