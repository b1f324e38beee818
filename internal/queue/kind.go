package queue

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the durable submission queues.
type Kind string

const (
	KindSOS     Kind = "sos"
	KindContact Kind = "contact"
)

// Kinds lists every queue kind in drain order.
var Kinds = []Kind{KindSOS, KindContact}

// ErrUnknownKind is returned by ParseKind for unrecognised names.
var ErrUnknownKind = errors.New("unknown queue kind")

// ParseKind resolves a queue name such as "sos" or "contact".
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSOS:
		return KindSOS, nil
	case KindContact:
		return KindContact, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// StorageKey is the key under which the queue's JSON array is persisted.
func (k Kind) StorageKey() string {
	return "herhaven_" + string(k) + "_queue"
}

// SyncTag is the background sync tag registered after an enqueue.
func (k Kind) SyncTag() string {
	return string(k) + "-sync"
}

// BackgroundSync reports whether the queue registers for background sync.
// Only SOS alerts participate; contact messages wait for connectivity events.
func (k Kind) BackgroundSync() bool {
	return k == KindSOS
}

// RequiresSuccessFlag reports whether a 2xx response must also carry
// "success": true in its JSON body to count as delivered.
func (k Kind) RequiresSuccessFlag() bool {
	return k == KindSOS
}

func (k Kind) String() string { return string(k) }
