package models

import (
	"encoding/json"
	"time"
)

// Cross-context message types exchanged over the coordinator.
const (
	// MsgPhotoSyncComplete tells open pages that a project's photos changed.
	MsgPhotoSyncComplete = "PHOTO_SYNC_COMPLETE"

	// MsgTriggerPhotoSync asks a connected foreground agent to start a sync.
	MsgTriggerPhotoSync = "TRIGGER_PHOTO_SYNC"

	// MsgWorkerUpdated announces that a new worker version took over its caches.
	MsgWorkerUpdated = "SW_UPDATED"

	// MsgOfflineReady reports the install-time precache result.
	MsgOfflineReady = "OFFLINE_READY"

	// MsgFocusPage asks a connected agent to take focus at a target URL.
	MsgFocusPage = "FOCUS_PAGE"
)

// Message wraps all cross-context messages.
type Message struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// NewMessage creates a Message of the given type with a current timestamp.
func NewMessage(msgType string, data map[string]any) Message {
	return Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// PhotoSyncComplete builds the broadcast sent after a capture is delivered.
func PhotoSyncComplete(projectID int64) Message {
	return NewMessage(MsgPhotoSyncComplete, map[string]any{"projectId": projectID})
}

// OfflineReady builds the install-complete notice with precache counts.
func OfflineReady(cachedChunks, totalChunks int) Message {
	return NewMessage(MsgOfflineReady, map[string]any{
		"cachedChunks": cachedChunks,
		"totalChunks":  totalChunks,
	})
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}

// ProjectID extracts the numeric projectId field from the message data.
// Returns 0 when absent; JSON numbers arrive as float64.
func (m Message) ProjectID() int64 {
	v, ok := m.Data["projectId"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
