package preflight

import (
	"context"
	"strings"

	"herhaven/internal/config"
)

// CheckRemoteAPIFromConfig evaluates remote API status for status displays.
func CheckRemoteAPIFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Remote API"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	return CheckRemoteAPI(ctx, cfg.API.BaseURL, cfg.API.Token)
}

// CheckNotificationsFromConfig reports whether ntfy delivery is configured.
// It does not publish anything; use "herhaven notify test" for that.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return Result{Name: name, Detail: "ntfy_topic must be a full URL"}
	}
	detail := "ntfy " + topic
	if !cfg.Notifications.FailedEntries {
		detail += " (failed-entry alerts off)"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
