package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"herhaven/internal/config"
)

const userAgent = "herhaven/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventEntryFailed        Event = "entry_failed"
	EventDrainCompleted     Event = "drain_completed"
	EventQueuedOffline      Event = "queued_offline"
	EventStorageUnavailable Event = "storage_unavailable"
	EventTest               Event = "test"
)

// Payload carries event-specific values. Keys used per event:
//
//	entry_failed:        queue, entryId, retryCount, error
//	drain_completed:     queue, synced, failed
//	queued_offline:      queue, entryId
//	storage_unavailable: queue, error
type Payload map[string]any

// Service defines the notification surface exposed to the workflow.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		failedEntries: cfg.Notifications.FailedEntries,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	failedEntries bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	queueName := payload.text("queue")
	label := queueLabel(queueName)

	switch event {
	case EventEntryFailed:
		if !n.failedEntries {
			return message{}, false
		}
		body := fmt.Sprintf("❌ %s %s was not delivered after %d attempts", label, payload.text("entryId"), payload.number("retryCount"))
		if reason := payload.text("error"); reason != "" {
			body += "\nLast error: " + reason
		}
		priority := "default"
		if queueName == "sos" {
			priority = "urgent"
		}
		return message{
			title:    "Herhaven - Delivery Failed",
			body:     body,
			tags:     []string{"herhaven", queueName, "failed"},
			priority: priority,
		}, true

	case EventDrainCompleted:
		synced := payload.number("synced")
		failed := payload.number("failed")
		if synced == 0 && failed == 0 {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Delivered %d queued %s", synced, plural(label, synced))
		if failed > 0 {
			body = fmt.Sprintf("%s, %d failed permanently", body, failed)
		}
		return message{
			title: "Herhaven - Queue Delivered",
			body:  body,
			tags:  []string{"herhaven", queueName, "synced"},
		}, true

	case EventQueuedOffline:
		if queueName != "sos" {
			return message{}, false
		}
		return message{
			title:    "Herhaven - SOS Queued",
			body:     fmt.Sprintf("🆘 SOS %s saved offline; it will be sent when the connection returns", payload.text("entryId")),
			tags:     []string{"herhaven", "sos", "queued"},
			priority: "high",
		}, true

	case EventStorageUnavailable:
		body := fmt.Sprintf("⚠️ %s queue storage unavailable", label)
		if reason := payload.text("error"); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "Herhaven - Storage Error",
			body:     body,
			tags:     []string{"herhaven", "storage", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Herhaven - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"herhaven", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if tags := nonEmpty(data.tags); len(tags) > 0 {
		req.Header.Set("Tags", strings.Join(tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func queueLabel(name string) string {
	switch name {
	case "sos":
		return "SOS alert"
	case "contact":
		return "contact message"
	case "":
		return "submission"
	}
	return name + " submission"
}

func plural(label string, n int) string {
	if n == 1 {
		return label
	}
	return label + "s"
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
