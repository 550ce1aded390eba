package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"easel/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures how to reach the backend.
type Config struct {
	// ServerAddress is host:port without scheme.
	ServerAddress string
	// Secure selects https/wss.
	Secure bool
	// RequestTimeout bounds uploads and submissions.
	RequestTimeout time.Duration
}

// Client talks to a ComfyUI server over HTTP and its websocket event stream.
type Client struct {
	httpBase   string
	wsBase     string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// NewClient constructs a backend client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	addr := strings.TrimRight(strings.TrimSpace(cfg.ServerAddress), "/")
	httpScheme, wsScheme := "http", "ws"
	if cfg.Secure {
		httpScheme, wsScheme = "https", "wss"
	}
	client := &Client{
		httpBase:   httpScheme + "://" + addr,
		wsBase:     wsScheme + "://" + addr,
		httpClient: &http.Client{Timeout: timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the HTTP root of the backend.
func (c *Client) BaseURL() string {
	return c.httpBase
}

type uploadResponse struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// UploadImage stores data on the backend under filename and returns the name
// the backend recorded, which is what template image slots must reference.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "build form", filename, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "build form", filename, err)
	}
	if err := writer.WriteField("overwrite", "true"); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "build form", filename, err)
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "build form", filename, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpBase+"/upload/image", &body)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "new request", filename, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBody, err := c.do(req)
	if err != nil {
		return "", services.Wrap(services.ErrUpload, "comfy", "upload image", filename, err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || strings.TrimSpace(parsed.Name) == "" {
		return filename, nil
	}
	return parsed.Name, nil
}

type queueRequest struct {
	Prompt   json.RawMessage `json:"prompt"`
	ClientID string          `json:"client_id"`
}

type queueResponse struct {
	PromptID   string          `json:"prompt_id"`
	Number     int             `json:"number"`
	NodeErrors json.RawMessage `json:"node_errors"`
}

// QueuePrompt submits a filled workflow scoped to clientID and returns the
// backend job identifier.
func (c *Client) QueuePrompt(ctx context.Context, workflow json.RawMessage, clientID string) (string, error) {
	encoded, err := json.Marshal(queueRequest{Prompt: workflow, ClientID: clientID})
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "encode prompt", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpBase+"/prompt", bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "new request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "queue prompt", "", err)
	}
	var parsed queueResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", services.Wrap(services.ErrSubmission, "comfy", "decode response", "", err)
	}
	if strings.TrimSpace(parsed.PromptID) == "" {
		return "", services.Wrap(services.ErrSubmission, "comfy", "queue prompt", "response missing prompt_id", nil)
	}
	return parsed.PromptID, nil
}

// ImageURL returns the retrieval reference for a produced image.
func (c *Client) ImageURL(img OutputImage) string {
	query := url.Values{}
	query.Set("filename", img.Filename)
	query.Set("subfolder", img.Subfolder)
	query.Set("type", img.Type)
	return c.httpBase + "/view?" + query.Encode()
}

// HealthCheck verifies the backend answers its system stats endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpBase+"/system_stats", nil)
	if err != nil {
		return fmt.Errorf("comfy health: new request: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("comfy health: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return body, fmt.Errorf("http %d: %s", resp.StatusCode, summarize(body))
	}
	return body, nil
}

func summarize(body []byte) string {
	const limit = 300
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
