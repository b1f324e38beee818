package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"herhaven/internal/queue"
)

const previewRunes = 48

// PayloadPreview renders a short single-line description of a payload for
// tables. It never fails; unparsable payloads yield an empty preview.
func PayloadPreview(kind queue.Kind, payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	switch kind {
	case queue.KindSOS:
		return sosPreview(fields)
	case queue.KindContact:
		return contactPreview(fields)
	}
	return ""
}

func sosPreview(fields map[string]any) string {
	var parts []string
	if loc, ok := fields["location"].(map[string]any); ok {
		lat, latOK := loc["lat"].(float64)
		lng, lngOK := loc["lng"].(float64)
		if latOK && lngOK {
			parts = append(parts, fmt.Sprintf("%.5f,%.5f", lat, lng))
		}
	}
	if note, ok := fields["note"].(string); ok && strings.TrimSpace(note) != "" {
		parts = append(parts, truncate(strings.TrimSpace(note), previewRunes))
	}
	return strings.Join(parts, " ")
}

func contactPreview(fields map[string]any) string {
	first, _ := fields["firstName"].(string)
	last, _ := fields["lastName"].(string)
	email, _ := fields["email"].(string)
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	email = strings.TrimSpace(email)
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return email
	}
	return name
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-1]) + "…"
}

// SortEntriesNewestFirst orders entries by Timestamp descending, breaking ties by ID descending.
func SortEntriesNewestFirst(entries []Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp == sorted[j].Timestamp {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	return sorted
}
