package comfy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"easel/internal/services"
)

// Event types the monitor reacts to. Everything else on the stream is dropped.
const (
	EventExecuted       = "executed"
	EventExecutionError = "execution_error"
	// EventExecutionDone marks the end of a job. The backend reports it either
	// as execution_success or as an executing message with a null node.
	EventExecutionDone = "execution_done"
)

const (
	wireExecuting            = "executing"
	wireExecutionSuccess     = "execution_success"
	wireExecutionInterrupted = "execution_interrupted"
)

const eventBuffer = 64

// OutputImage describes one produced image.
type OutputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// Event is a parsed backend lifecycle message.
type Event struct {
	Type     string
	PromptID string
	Node     string
	Images   []OutputImage
	// Message carries the exception text of an execution_error.
	Message string
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireExecuted struct {
	Node     string `json:"node"`
	PromptID string `json:"prompt_id"`
	Output   struct {
		Images []OutputImage `json:"images"`
	} `json:"output"`
}

type wireExecutingPayload struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type wireExecutionError struct {
	PromptID         string `json:"prompt_id"`
	NodeID           string `json:"node_id"`
	NodeType         string `json:"node_type"`
	ExceptionMessage string `json:"exception_message"`
}

// ParseEvent decodes a text frame from the event stream. ok is false for
// message types the monitor does not consume.
func ParseEvent(data []byte) (Event, bool, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false, fmt.Errorf("decode event: %w", err)
	}
	switch msg.Type {
	case EventExecuted:
		var payload wireExecuted
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode executed event: %w", err)
		}
		return Event{
			Type:     EventExecuted,
			PromptID: payload.PromptID,
			Node:     payload.Node,
			Images:   payload.Output.Images,
		}, true, nil
	case wireExecuting, wireExecutionSuccess:
		var payload wireExecutingPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode %s event: %w", msg.Type, err)
		}
		if msg.Type == wireExecuting && payload.Node != nil {
			return Event{}, false, nil
		}
		return Event{Type: EventExecutionDone, PromptID: payload.PromptID}, true, nil
	case wireExecutionInterrupted:
		var payload wireExecutionError
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode execution_interrupted event: %w", err)
		}
		return Event{Type: EventExecutionError, PromptID: payload.PromptID, Node: payload.NodeID, Message: "execution interrupted"}, true, nil
	case EventExecutionError:
		var payload wireExecutionError
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode execution_error event: %w", err)
		}
		message := payload.ExceptionMessage
		if payload.NodeType != "" {
			message = fmt.Sprintf("%s (node %s %s)", message, payload.NodeID, payload.NodeType)
		}
		return Event{
			Type:     EventExecutionError,
			PromptID: payload.PromptID,
			Node:     payload.NodeID,
			Message:  message,
		}, true, nil
	default:
		return Event{}, false, nil
	}
}

// Subscription is a live event stream scoped to one client identifier.
type Subscription struct {
	conn   *websocket.Conn
	events chan Event

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	done      chan struct{}
}

// Subscribe opens the event stream for clientID. Events are buffered from the
// moment the connection opens so nothing emitted before Await starts is lost.
func (c *Client) Subscribe(ctx context.Context, clientID string) (*Subscription, error) {
	endpoint := c.wsBase + "/ws?clientId=" + url.QueryEscape(clientID)
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, services.Wrap(services.ErrSubmission, "comfy", "subscribe", clientID, err)
	}
	sub := &Subscription{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go sub.read()
	return sub, nil
}

func (s *Subscription) read() {
	defer close(s.events)
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		if kind != websocket.TextMessage {
			// Binary frames carry preview images.
			continue
		}
		event, ok, err := ParseEvent(data)
		if err != nil || !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Events returns the buffered event channel. It is closed when the stream ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err reports why the stream ended, if it has.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears down the stream. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Await consumes events until promptID reaches a terminal state or timeout
// elapses. It returns the images produced by outputNode. Executed events for
// other jobs, other nodes, or without images are ignored. A job that finishes
// without an output event yields no images and a nil error.
func Await(ctx context.Context, events <-chan Event, promptID, outputNode string, timeout time.Duration) ([]OutputImage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, services.Wrap(services.ErrTimeout, "monitor", "await", fmt.Sprintf("no result for %s within %s", promptID, timeout), nil)
		case event, ok := <-events:
			if !ok {
				return nil, services.Wrap(services.ErrBackendExecution, "monitor", "await", "event stream closed", errors.New("connection lost"))
			}
			if event.PromptID != promptID {
				continue
			}
			switch event.Type {
			case EventExecutionError:
				return nil, services.Wrap(services.ErrBackendExecution, "monitor", "execution_error", event.Message, nil)
			case EventExecuted:
				if event.Node != outputNode || len(event.Images) == 0 {
					continue
				}
				return event.Images, nil
			case EventExecutionDone:
				return nil, nil
			}
		}
	}
}
