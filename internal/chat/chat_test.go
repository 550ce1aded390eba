package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"easel/internal/chat"
)

func TestExtractAssetsBodyThenQuote(t *testing.T) {
	body := []chat.Element{
		{Type: "text", Attrs: map[string]string{"content": "hi"}},
		{Type: "img", Attrs: map[string]string{"src": "https://cdn/a.png"}},
		{Type: "image", Attrs: map[string]string{}},
	}
	quote := &chat.Quote{Elements: []chat.Element{
		{Type: "image", Attrs: map[string]string{"src": "https://cdn/b.png"}},
	}}

	assets := chat.ExtractAssets(body, quote)
	if len(assets) != 2 || assets[0].URL != "https://cdn/a.png" || assets[1].URL != "https://cdn/b.png" {
		t.Fatalf("unexpected assets %+v", assets)
	}
	if got := chat.ExtractAssets(nil, nil); len(got) != 0 {
		t.Fatalf("expected no assets, got %+v", got)
	}
}

func TestBridgeSessionPostsReplies(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []chat.Reply
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reply chat.Reply
		if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
			t.Errorf("decode reply: %v", err)
		}
		mu.Lock()
		replies = append(replies, reply)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	session := chat.NewBridgeSession(chat.Interaction{
		RequesterID: "u1",
		ChannelID:   "c1",
		Authority:   2,
		ReplyURL:    server.URL,
	}, nil, nil)

	if session.RequesterID() != "u1" || session.ChannelID() != "c1" || session.Authority() != 2 {
		t.Fatal("unexpected session identity")
	}
	if err := session.Send(context.Background(), "Queued (position 1)..."); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := session.SendImage(context.Background(), "http://gpu/view?filename=a.png"); err != nil {
		t.Fatalf("SendImage returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(replies) != 2 || replies[0].Type != "text" || replies[1].Type != "image" {
		t.Fatalf("unexpected replies %+v", replies)
	}
}

func TestBridgeSessionWithoutReplyURL(t *testing.T) {
	session := chat.NewBridgeSession(chat.Interaction{RequesterID: "u1"}, nil, nil)
	if err := session.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("expected silent drop, got %v", err)
	}
}

func TestBridgeSessionReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	session := chat.NewBridgeSession(chat.Interaction{ReplyURL: server.URL}, nil, nil)
	if err := session.Send(context.Background(), "hello"); err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("pixels"))
	}))
	defer server.Close()

	fetcher := chat.NewFetcher(time.Second)
	data, err := fetcher.Fetch(context.Background(), chat.Asset{URL: server.URL + "/a.png"})
	if err != nil || string(data) != "pixels" {
		t.Fatalf("unexpected fetch result %q %v", data, err)
	}
	if _, err := fetcher.Fetch(context.Background(), chat.Asset{URL: server.URL + "/missing"}); err == nil {
		t.Fatal("expected error for missing asset")
	}
}

func TestInteractionAssets(t *testing.T) {
	var in chat.Interaction
	payload := `{"requester_id":"u","channel_id":"c","command":true,"text":"edit red car",
		"elements":[{"type":"img","attrs":{"src":"https://cdn/1.png"}}],
		"quote":{"elements":[{"type":"image","attrs":{"src":"https://cdn/2.png"}}]}}`
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		t.Fatalf("decode interaction: %v", err)
	}
	if got := in.Assets(); len(got) != 2 {
		t.Fatalf("expected 2 assets, got %+v", got)
	}
}
