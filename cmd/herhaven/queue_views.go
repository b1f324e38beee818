package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"herhaven/internal/api"
	"herhaven/internal/queue"
)

var queueStatusHeaders = []string{"Queue", "Pending", "Syncing", "Synced", "Failed", "Total", "Last drain"}

var queueStatusAligns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

func buildQueueStatusRows(statuses []api.QueueStatus) ([][]string, []string) {
	rows := make([][]string, 0, len(statuses))
	var total api.Counts
	for _, qs := range statuses {
		c := qs.Counts
		rows = append(rows, []string{
			qs.Kind,
			strconv.Itoa(c.Pending),
			strconv.Itoa(c.Syncing),
			strconv.Itoa(c.Synced),
			strconv.Itoa(c.Failed),
			strconv.Itoa(c.Total),
			describeLastDrain(qs),
		})
		total.Pending += c.Pending
		total.Syncing += c.Syncing
		total.Synced += c.Synced
		total.Failed += c.Failed
		total.Total += c.Total
	}
	if len(statuses) < 2 {
		return rows, nil
	}
	footer := []string{
		"all",
		strconv.Itoa(total.Pending),
		strconv.Itoa(total.Syncing),
		strconv.Itoa(total.Synced),
		strconv.Itoa(total.Failed),
		strconv.Itoa(total.Total),
		"",
	}
	return rows, footer
}

func describeLastDrain(qs api.QueueStatus) string {
	if qs.Draining {
		return "draining now"
	}
	if qs.LastDrain == nil {
		return "-"
	}
	d := qs.LastDrain
	summary := fmt.Sprintf("%d/%d synced", d.Synced, d.Attempted)
	if d.Failed > 0 {
		summary += fmt.Sprintf(", %d failed", d.Failed)
	}
	if when := api.ParseTime(d.FinishedAt); !when.IsZero() {
		summary += " " + formatAge(time.Since(when)) + " ago"
	}
	return summary
}

var queueListHeaders = []string{"ID", "Status", "Retries", "Created", "Summary"}

var queueListAligns = []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

func buildQueueListRows(entries []api.Entry, now time.Time) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range api.SortEntriesNewestFirst(entries) {
		created := time.UnixMilli(entry.Timestamp)
		rows = append(rows, []string{
			entry.ID,
			entry.Status,
			strconv.Itoa(entry.RetryCount),
			fmt.Sprintf("%s (%s ago)", created.Local().Format("2006-01-02 15:04"), formatAge(now.Sub(created))),
			entry.Preview,
		})
	}
	return rows
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// parseKinds resolves optional queue arguments; none means every queue.
func parseKinds(args []string) ([]queue.Kind, error) {
	if len(args) == 0 {
		return append([]queue.Kind(nil), queue.Kinds...), nil
	}
	kinds := make([]queue.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := queue.ParseKind(strings.TrimSpace(arg))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func queueKindNames() string {
	names := make([]string, 0, len(queue.Kinds))
	for _, kind := range queue.Kinds {
		names = append(names, string(kind))
	}
	return strings.Join(names, "|")
}
