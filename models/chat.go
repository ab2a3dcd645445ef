package models

import "encoding/json"

// ChatRequest is the payload sent to POST /chat.
type ChatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Type           string         `json:"type,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// ChatResponse is the backend's reply. The itinerary payload, when present,
// arrives in whatever shape the backend happened to produce; it is passed to
// the normalizer untouched.
type ChatResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message,omitempty"`
	Response       string          `json:"response,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Itinerary      json.RawMessage `json:"itinerary,omitempty"`
}

// AssistantReply is what the chat view renders for one backend exchange.
// Application-level failures (success=false) surface here verbatim instead of
// being treated as errors.
type AssistantReply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// TranscriptResponse is the reply to POST /save-audio.
type TranscriptResponse struct {
	Success    bool            `json:"success"`
	Transcript string          `json:"transcript,omitempty"`
	Response   string          `json:"response,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}
