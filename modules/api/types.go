package api

import (
	domain "github.com/example/airbridge/domain/collab"
)

// wsRequest is the envelope for client-to-server WebSocket frames. Only the
// fields relevant to the request type are populated.
type wsRequest struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId"`
	Text      string          `json:"text"`
	Username  string          `json:"username"`
	Timestamp int64           `json:"timestamp"`
	File      *domain.FileRef `json:"file"`
}

// connectConfirmedFrame greets a freshly upgraded connection with its ID.
type connectConfirmedFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// userCountFrame matches the broadcast module's wire frame for the one case
// the transport synthesizes it itself: the creator's count on room creation.
type userCountFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// roomStateAck answers create-room and join-room requests with the room
// snapshot. Text and Messages have no omitempty so an empty room still
// serializes as `"text":"", "messages":[]`.
type roomStateAck struct {
	Type     string               `json:"type"`
	OK       bool                 `json:"ok"`
	RoomID   string               `json:"roomId,omitempty"`
	Text     string               `json:"text"`
	Messages []domain.ChatMessage `json:"messages"`
}

// simpleAck answers requests that carry no response payload.
type simpleAck struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// errorAck answers any failed request with the wire error message.
type errorAck struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// UploadResponse is the JSON body for a successful POST /upload.
type UploadResponse struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimetype"`
}

// ErrorResponse is the JSON body for failed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON body for GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
