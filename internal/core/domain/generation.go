package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	JSONMimeType     = "application/json"
	FinishReasonStop = "STOP"
)

// ResponseMode selects how the model is asked to shape its answer.
type ResponseMode string

const (
	ResponseModeJSON     ResponseMode = "json"
	ResponseModeMarkdown ResponseMode = "markdown"
)

// Prompt is one model call as the workflow sees it.
type Prompt struct {
	Text        string
	Mode        ResponseMode
	Attachment  *Attachment
	NeedsSearch bool
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
}

type GoogleSearch struct{}

type Tool struct {
	GoogleSearch         *GoogleSearch   `json:"googleSearch,omitempty"`
	FunctionDeclarations json.RawMessage `json:"functionDeclarations,omitempty"`
}

// GenerationRequest is the body accepted by POST /api/transcribe.
// NeedsSearch is relay-local and has no upstream counterpart. The typed
// fields are what the relay validates; a decoded request also keeps
// every field it arrived with so nothing is lost on the way upstream.
type GenerationRequest struct {
	Contents          []Content         `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	SafetySettings    json.RawMessage   `json:"safetySettings,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
	NeedsSearch       bool              `json:"needsSearch,omitempty"`

	fields map[string]json.RawMessage
}

func (r *GenerationRequest) UnmarshalJSON(data []byte) error {
	type envelope GenerationRequest
	var typed envelope
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = GenerationRequest(typed)
	r.fields = fields
	return nil
}

// UpstreamRequest is the body the model endpoint receives.
type UpstreamRequest struct {
	fields map[string]json.RawMessage
}

func (u UpstreamRequest) MarshalJSON() ([]byte, error) {
	if u.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.fields)
}

// Field returns the raw value of a top-level field, or nil.
func (u UpstreamRequest) Field(name string) json.RawMessage {
	return u.fields[name]
}

// HasSearchTool reports whether tools declares googleSearch.
func (u UpstreamRequest) HasSearchTool() bool {
	tools, err := decodeTools(u.fields["tools"])
	return err == nil && hasSearchTool(tools)
}

// Request builds the relay envelope for p.
func (p Prompt) Request() GenerationRequest {
	parts := []Part{{Text: p.Text}}
	if p.Attachment != nil && p.Attachment.Data != "" && p.Attachment.MimeType != "" {
		parts = append(parts, Part{InlineData: &InlineData{
			MimeType: p.Attachment.MimeType,
			Data:     p.Attachment.Data,
		}})
	}

	req := GenerationRequest{
		Contents:    []Content{{Parts: parts}},
		NeedsSearch: p.NeedsSearch,
	}
	if p.Mode == ResponseModeJSON {
		req.GenerationConfig = &GenerationConfig{ResponseMimeType: JSONMimeType}
	}
	return req
}

// Validate checks the envelope shape the relay relies on.
func (r GenerationRequest) Validate() error {
	if len(r.Contents) == 0 {
		return &MessageError{Kind: ErrInvalidInput, Message: "contents must not be empty"}
	}
	for i, c := range r.Contents {
		if len(c.Parts) == 0 {
			return &MessageError{Kind: ErrInvalidInput, Message: fmt.Sprintf("contents[%d].parts must not be empty", i)}
		}
	}
	return nil
}

var searchTool = json.RawMessage(`{"googleSearch":{}}`)

// Upstream drops needsSearch and declares the search tool when the caller
// asked for it. Every other field is forwarded as received.
func (r GenerationRequest) Upstream() (UpstreamRequest, error) {
	fields, err := r.upstreamFields()
	if err != nil {
		return UpstreamRequest{}, err
	}
	delete(fields, "needsSearch")

	if r.NeedsSearch {
		tools, err := decodeTools(fields["tools"])
		if err != nil {
			return UpstreamRequest{}, &MessageError{Kind: ErrInvalidInput, Message: "tools must be an array of objects"}
		}
		if !hasSearchTool(tools) {
			raw, err := json.Marshal(append(tools, searchTool))
			if err != nil {
				return UpstreamRequest{}, fmt.Errorf("marshal tools: %w", err)
			}
			fields["tools"] = raw
		}
	}
	return UpstreamRequest{fields: fields}, nil
}

func (r GenerationRequest) upstreamFields() (map[string]json.RawMessage, error) {
	if r.fields != nil {
		fields := make(map[string]json.RawMessage, len(r.fields)+1)
		for k, v := range r.fields {
			fields[k] = v
		}
		return fields, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode generation request: %w", err)
	}
	return fields, nil
}

func decodeTools(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tools []json.RawMessage
	if err := json.Unmarshal(raw, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

func hasSearchTool(tools []json.RawMessage) bool {
	for _, raw := range tools {
		var tool map[string]json.RawMessage
		if json.Unmarshal(raw, &tool) != nil {
			continue
		}
		if _, ok := tool["googleSearch"]; ok {
			return true
		}
	}
	return false
}

type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GenerateResponse keeps the upstream body verbatim next to the few
// fields the service inspects.
type GenerateResponse struct {
	Raw            json.RawMessage `json:"-"`
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

func DecodeGenerateResponse(raw []byte) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	resp.Raw = append(json.RawMessage(nil), raw...)
	return &resp, nil
}

// HasContent reports whether a candidate with non-empty parts exists.
func (r *GenerateResponse) HasContent() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Candidates {
		if c.Content != nil && len(c.Content.Parts) > 0 {
			return true
		}
	}
	return false
}

// FirstText returns candidates[0].content.parts[0].text.
func (r *GenerateResponse) FirstText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	c := r.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", false
	}
	return c.Content.Parts[0].Text, true
}

// EmptyResponseError explains why a successful response has no usable text.
func (r *GenerateResponse) EmptyResponseError() error {
	if r != nil && len(r.Candidates) > 0 {
		reason := r.Candidates[0].FinishReason
		if reason != "" && reason != FinishReasonStop {
			return &MessageError{
				Kind: ErrEmptyResponse,
				Message: fmt.Sprintf(
					"The model stopped processing for the following reason: %s. This may be due to safety settings or an issue with the prompt.",
					reason,
				),
			}
		}
	}
	if r != nil && r.PromptFeedback != nil && strings.TrimSpace(r.PromptFeedback.BlockReason) != "" {
		return &MessageError{
			Kind:    ErrEmptyResponse,
			Message: fmt.Sprintf("The prompt was blocked by the model: %s.", r.PromptFeedback.BlockReason),
		}
	}
	return &MessageError{
		Kind:    ErrEmptyResponse,
		Message: "Could not process the request. The response from the model was empty.",
	}
}

// Text returns the first candidate text or the reason there is none.
func (r *GenerateResponse) Text() (string, error) {
	text, ok := r.FirstText()
	if !ok {
		return "", r.EmptyResponseError()
	}
	return text, nil
}
