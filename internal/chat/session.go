package chat

import "context"

// Session is the conversation an interaction arrived on. Replies sent through
// it reach the requester.
type Session interface {
	RequesterID() string
	ChannelID() string
	// Authority is the requester's permission level.
	Authority() int
	Send(ctx context.Context, text string) error
	SendImage(ctx context.Context, url string) error
}

// Asset references one image supplied by the requester.
type Asset struct {
	URL string `json:"url"`
}

// Element is one rich-content node of a chat message.
type Element struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Quote is the message an interaction replies to.
type Quote struct {
	Elements []Element `json:"elements,omitempty"`
}

// ExtractAssets returns image references from the message body followed by
// the quoted message, in order.
func ExtractAssets(body []Element, quote *Quote) []Asset {
	var assets []Asset
	collect := func(elements []Element) {
		for _, el := range elements {
			if el.Type != "image" && el.Type != "img" {
				continue
			}
			if src := el.Attrs["src"]; src != "" {
				assets = append(assets, Asset{URL: src})
			}
		}
	}
	collect(body)
	if quote != nil {
		collect(quote.Elements)
	}
	return assets
}
