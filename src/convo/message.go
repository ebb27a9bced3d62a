// Package convo implements the conversation context model: an append-only,
// fork-able log of chat turns shared between the model loop and the tool
// execution pipeline.
package convo

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind is the discriminant tag of a content part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartReasoning  PartKind = "reasoning"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// Part is one element of a message's structured content. The variants share
// no behavior beyond the discriminant, so the interface stays minimal.
type Part interface {
	Kind() PartKind
	clonePart() Part
}

// TextPart is narrative assistant or user text.
type TextPart struct {
	Text string `json:"text"`
}

// ReasoningPart is model reasoning emitted alongside the answer.
type ReasoningPart struct {
	Text string `json:"text"`
}

// ToolCallPart is the model requesting a tool invocation.
type ToolCallPart struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input,omitempty"`
}

// ToolResultPart is the recorded outcome of a previously issued tool call.
// A single tool message may carry several results (batched parallel calls).
type ToolResultPart struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Output     string `json:"output"`
	IsError    bool   `json:"is_error,omitempty"`
	Finished   bool   `json:"finished"`
}

func (p TextPart) Kind() PartKind       { return PartText }
func (p ReasoningPart) Kind() PartKind  { return PartReasoning }
func (p ToolCallPart) Kind() PartKind   { return PartToolCall }
func (p ToolResultPart) Kind() PartKind { return PartToolResult }

func (p TextPart) clonePart() Part      { return p }
func (p ReasoningPart) clonePart() Part { return p }

func (p ToolCallPart) clonePart() Part {
	out := p
	if p.Input != nil {
		out.Input = append(json.RawMessage(nil), p.Input...)
	}
	return out
}

func (p ToolResultPart) clonePart() Part { return p }

// Message is one conversational turn or tool record. Content is either plain
// Text or an ordered Parts sequence; Parts takes precedence when non-nil.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"-"`
	Parts     []Part    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Clone returns a deep copy of the message, safe to hand across ownership
// boundaries.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p.clonePart()
		}
	}
	return out
}

// ToolCalls returns the tool-call parts of the message in content order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if call, ok := p.(ToolCallPart); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// ToolResults returns the tool-result parts of the message in content order.
func (m Message) ToolResults() []ToolResultPart {
	var results []ToolResultPart
	for _, p := range m.Parts {
		if res, ok := p.(ToolResultPart); ok {
			results = append(results, res)
		}
	}
	return results
}

// partEnvelope is the wire form of a content part. Only the fields for the
// tagged variant are populated.
type partEnvelope struct {
	Type       PartKind        `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	Finished   bool            `json:"finished,omitempty"`
}

func envelopeFor(p Part) partEnvelope {
	switch v := p.(type) {
	case TextPart:
		return partEnvelope{Type: PartText, Text: v.Text}
	case ReasoningPart:
		return partEnvelope{Type: PartReasoning, Text: v.Text}
	case ToolCallPart:
		return partEnvelope{Type: PartToolCall, ToolCallID: v.ToolCallID, ToolName: v.ToolName, Input: v.Input}
	case ToolResultPart:
		return partEnvelope{Type: PartToolResult, ToolCallID: v.ToolCallID, ToolName: v.ToolName, Output: v.Output, IsError: v.IsError, Finished: v.Finished}
	default:
		return partEnvelope{}
	}
}

func (e partEnvelope) part() (Part, error) {
	switch e.Type {
	case PartText:
		return TextPart{Text: e.Text}, nil
	case PartReasoning:
		return ReasoningPart{Text: e.Text}, nil
	case PartToolCall:
		return ToolCallPart{ToolCallID: e.ToolCallID, ToolName: e.ToolName, Input: e.Input}, nil
	case PartToolResult:
		return ToolResultPart{ToolCallID: e.ToolCallID, ToolName: e.ToolName, Output: e.Output, IsError: e.IsError, Finished: e.Finished}, nil
	default:
		return nil, fmt.Errorf("unknown content part type %q", e.Type)
	}
}

type messageWire struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// MarshalJSON serializes content as a plain string for simple messages and
// as a tagged part array for structured ones, matching the persistence
// contract: round-trips are lossless.
func (m Message) MarshalJSON() ([]byte, error) {
	wire := messageWire{ID: m.ID, Role: m.Role, CreatedAt: m.CreatedAt}

	if m.Parts != nil {
		envelopes := make([]partEnvelope, len(m.Parts))
		for i, p := range m.Parts {
			envelopes[i] = envelopeFor(p)
		}
		raw, err := json.Marshal(envelopes)
		if err != nil {
			return nil, err
		}
		wire.Content = raw
	} else {
		raw, err := json.Marshal(m.Text)
		if err != nil {
			return nil, err
		}
		wire.Content = raw
	}

	return json.Marshal(wire)
}

// UnmarshalJSON restores a message from its wire form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	m.ID = wire.ID
	m.Role = wire.Role
	m.CreatedAt = wire.CreatedAt
	m.Text = ""
	m.Parts = nil

	if len(wire.Content) == 0 || string(wire.Content) == "null" {
		return nil
	}

	if wire.Content[0] == '[' {
		var envelopes []partEnvelope
		if err := json.Unmarshal(wire.Content, &envelopes); err != nil {
			return err
		}
		m.Parts = make([]Part, len(envelopes))
		for i, e := range envelopes {
			p, err := e.part()
			if err != nil {
				return err
			}
			m.Parts[i] = p
		}
		return nil
	}

	return json.Unmarshal(wire.Content, &m.Text)
}
