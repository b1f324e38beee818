package submission

import (
	"bytes"
	"encoding/json"
	"fmt"

	"herhaven/internal/queue"
)

// Prepare decodes raw as the payload type for kind, normalizes and validates
// it, and returns the canonical JSON to enqueue.
func Prepare(kind queue.Kind, raw []byte) (json.RawMessage, error) {
	switch kind {
	case queue.KindSOS:
		var req SOSRequest
		if err := decodeStrict(raw, &req); err != nil {
			return nil, err
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return json.Marshal(req)
	case queue.KindContact:
		var msg ContactMessage
		if err := decodeStrict(raw, &msg); err != nil {
			return nil, err
		}
		msg.Normalize()
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		return json.Marshal(msg)
	default:
		return nil, fmt.Errorf("%w: %q", queue.ErrUnknownKind, kind)
	}
}

func decodeStrict(raw []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return &ValidationError{Problems: []Problem{{Field: "body", Reason: err.Error()}}}
	}
	if decoder.More() {
		return &ValidationError{Problems: []Problem{{Field: "body", Reason: "trailing data after JSON object"}}}
	}
	return nil
}
