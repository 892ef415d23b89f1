// Package ccrreq defines the Claude-style chat-completion request shape the
// router engine reads and rewrites. It is the one data type shared between
// engine/identity and engine/router so both see the same wire format.
package ccrreq

import (
	"encoding/json"
	"fmt"
)

// Request is the transport-provided payload. The router mutates Body in
// place and returns control to the caller, which then sends it onward.
type Request struct {
	Body Body `json:"body"`
}

// Body is the Claude-style messages-API request body.
type Body struct {
	Model     string         `json:"model"`
	System    []SystemBlock  `json:"system,omitempty"`
	Messages  []Message      `json:"messages,omitempty"`
	Metadata  Metadata       `json:"metadata"`
	Tools     []Tool         `json:"tools,omitempty"`
	Thinking  any            `json:"thinking,omitempty"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Extra     map[string]any `json:"-"`
}

// SystemBlock is one entry of body.system.
type SystemBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Tool is one entry of body.tools; only Type is inspected by the router.
type Tool struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Metadata is body.metadata: session wiring plus optional parent-context
// fields for nested agent/workflow invocations.
type Metadata struct {
	UserID      string `json:"user_id,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	ParentModel string `json:"parent_model,omitempty"`
	ParentType  string `json:"parent_type,omitempty"`
}

// Message is one entry of body.messages. Content is either a bare string or
// an ordered list of strings/text-blocks, mirroring the Claude wire format.
type Message struct {
	Role    string  `json:"role,omitempty"`
	Content Content `json:"content"`
}

// Content holds body.messages[i].content, which on the wire is either a
// JSON string or a JSON array of strings and {"type":"text","text":...}
// objects. Exactly one of Str or Blocks is populated after unmarshaling,
// following the same scalar-or-mapping idiom the upstream orchestrator uses
// for agent.Model (UnmarshalJSON dispatches on the raw shape).
type Content struct {
	Str    *string
	Blocks []ContentItem
}

// ContentItem is one element of an array-form Content. When IsText is
// false, the item was a bare string (Text still holds its value for
// convenience); when true, it came from an explicit {"type":"text",...}
// object and Type preserves the original type tag.
type ContentItem struct {
	IsText bool
	Type   string
	Text   string
}

// UnmarshalJSON accepts either a JSON string or a JSON array.
func (c *Content) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Str = &s
		c.Blocks = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("content must be a string or an array: %w", err)
	}
	items := make([]ContentItem, 0, len(raw))
	for _, r := range raw {
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			items = append(items, ContentItem{IsText: false, Text: str})
			continue
		}
		var block struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(r, &block); err != nil {
			return fmt.Errorf("content item must be a string or text block: %w", err)
		}
		items = append(items, ContentItem{IsText: true, Type: block.Type, Text: block.Text})
	}
	c.Blocks = items
	c.Str = nil
	return nil
}

// MarshalJSON emits the original scalar-or-array shape.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Str != nil {
		return json.Marshal(*c.Str)
	}
	raw := make([]any, 0, len(c.Blocks))
	for _, item := range c.Blocks {
		if item.IsText {
			raw = append(raw, map[string]string{"type": item.Type, "text": item.Text})
		} else {
			raw = append(raw, item.Text)
		}
	}
	return json.Marshal(raw)
}

// Texts returns every plain-text fragment held in this content value, in
// order, regardless of whether it came from a bare string or a text block.
func (c Content) Texts() []string {
	if c.Str != nil {
		return []string{*c.Str}
	}
	out := make([]string, 0, len(c.Blocks))
	for _, item := range c.Blocks {
		if !item.IsText || item.Type == "" || item.Type == "text" {
			out = append(out, item.Text)
		}
	}
	return out
}

// SetBlockText rewrites the text of the i-th array item (no-op for scalar
// string content or an out-of-range index).
func (c *Content) SetBlockText(i int, text string) {
	if c.Str != nil || i < 0 || i >= len(c.Blocks) {
		return
	}
	c.Blocks[i].Text = text
}
