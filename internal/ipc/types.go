package ipc

import (
	"encoding/json"

	"herhaven/internal/api"
)

// serviceName is the JSON-RPC receiver name.
const serviceName = "Herhaven"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse = api.DaemonStatus

// SubmitRequest enqueues a payload on a queue.
type SubmitRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse = api.EnqueueResponse

// QueueRequest addresses one queue.
type QueueRequest struct {
	Kind string `json:"kind"`
}

// QueueStatusResponse summarizes one queue.
type QueueStatusResponse = api.QueueStatus

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Kind        string   `json:"kind"`
	Statuses    []string `json:"statuses"`
	WithPayload bool     `json:"with_payload"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Entries []api.Entry `json:"entries"`
}

// QueueRemoveRequest removes one entry.
type QueueRemoveRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// QueueClearResponse reports the number of removed entries.
type QueueClearResponse = api.ClearResponse

// QueueDrainResponse reports the drain outcome.
type QueueDrainResponse = api.DrainInfo

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches buffered log events.
type LogTailRequest struct {
	Since  uint64 `json:"since"`
	Limit  int    `json:"limit"`
	Follow bool   `json:"follow"`
	// WaitMillis bounds how long a follow request blocks.
	WaitMillis int `json:"wait_millis"`
}

// LogTailResponse carries log events and the next cursor.
type LogTailResponse = api.LogStreamResponse
