package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"easel/internal/logging"
)

const defaultReplyTimeout = 15 * time.Second

// Interaction is one inbound event from the chat bridge.
type Interaction struct {
	RequesterID string `json:"requester_id"`
	ChannelID   string `json:"channel_id"`
	GuildID     string `json:"guild_id,omitempty"`
	Authority   int    `json:"authority"`
	// Command marks an invocation of the image command; other interactions are
	// plain messages that may continue a pending assembly.
	Command       bool      `json:"command"`
	Text          string    `json:"text,omitempty"`
	Raw           bool      `json:"raw,omitempty"`
	TranslateOnly bool      `json:"translate_only,omitempty"`
	Elements      []Element `json:"elements,omitempty"`
	Quote         *Quote    `json:"quote,omitempty"`
	// ReplyURL receives replies as {"type": "text"|"image", "content": ...}.
	ReplyURL string `json:"reply_url,omitempty"`
}

// Assets returns the images attached to the interaction.
func (i Interaction) Assets() []Asset {
	return ExtractAssets(i.Elements, i.Quote)
}

// Reply is the payload posted to an interaction's reply URL.
type Reply struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// BridgeSession delivers replies by posting them to the interaction's reply URL.
type BridgeSession struct {
	interaction Interaction
	client      *http.Client
	logger      *slog.Logger
}

// NewBridgeSession wraps an inbound interaction.
func NewBridgeSession(in Interaction, client *http.Client, logger *slog.Logger) *BridgeSession {
	if client == nil {
		client = &http.Client{Timeout: defaultReplyTimeout}
	}
	return &BridgeSession{
		interaction: in,
		client:      client,
		logger:      logging.NewComponentLogger(logger, "chat"),
	}
}

func (s *BridgeSession) RequesterID() string { return s.interaction.RequesterID }

func (s *BridgeSession) ChannelID() string { return s.interaction.ChannelID }

func (s *BridgeSession) Authority() int { return s.interaction.Authority }

// Send posts a text reply.
func (s *BridgeSession) Send(ctx context.Context, text string) error {
	return s.post(ctx, Reply{Type: "text", Content: text})
}

// SendImage posts an image reply referencing url.
func (s *BridgeSession) SendImage(ctx context.Context, url string) error {
	return s.post(ctx, Reply{Type: "image", Content: url})
}

func (s *BridgeSession) post(ctx context.Context, reply Reply) error {
	target := strings.TrimSpace(s.interaction.ReplyURL)
	if target == "" {
		s.logger.Debug("reply dropped without reply_url",
			logging.String("reply_type", reply.Type),
			logging.String("content", reply.Content),
		)
		return nil
	}
	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("chat reply: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chat reply: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat reply: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("chat reply: unexpected status %s", resp.Status)
	}
	return nil
}
