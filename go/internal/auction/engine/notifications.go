package engine

import (
	"sort"
	"time"
)

// NotificationKind identifies a transient UI message
type NotificationKind string

const (
	NotificationExtended   NotificationKind = "extended"
	NotificationBidSuccess NotificationKind = "bidSuccess"
	NotificationBidError   NotificationKind = "bidError"
)

// DefaultNotificationTTL is how long a transient notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// Notification is a self-expiring message shown alongside the auction
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// NotificationSet holds at most one notification per kind. Expiry is declarative:
// entries carry their deadline and are removed by Expire, driven by one scheduler.
type NotificationSet struct {
	ttl     time.Duration
	entries map[NotificationKind]Notification
}

// NewNotificationSet creates an empty set with the given lifetime per entry
func NewNotificationSet(ttl time.Duration) *NotificationSet {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &NotificationSet{
		ttl:     ttl,
		entries: make(map[NotificationKind]Notification),
	}
}

// Add registers a notification, replacing any active one of the same kind so its
// window restarts from now.
func (s *NotificationSet) Add(kind NotificationKind, message string, now time.Time) Notification {
	n := Notification{
		Kind:      kind,
		Message:   message,
		ExpiresAt: now.Add(s.ttl),
	}
	s.entries[kind] = n
	return n
}

// Expire removes every notification whose deadline is not after now.
// Returns true if anything was removed.
func (s *NotificationSet) Expire(now time.Time) bool {
	removed := false
	for kind, n := range s.entries {
		if !n.ExpiresAt.After(now) {
			delete(s.entries, kind)
			removed = true
		}
	}
	return removed
}

// NextExpiry returns the earliest deadline among active notifications.
func (s *NotificationSet) NextExpiry() (time.Time, bool) {
	var next time.Time
	found := false
	for _, n := range s.entries {
		if !found || n.ExpiresAt.Before(next) {
			next = n.ExpiresAt
			found = true
		}
	}
	return next, found
}

// Has reports whether a notification of the given kind is active.
func (s *NotificationSet) Has(kind NotificationKind) bool {
	_, ok := s.entries[kind]
	return ok
}

// Active returns the notifications ordered by expiry, oldest first.
func (s *NotificationSet) Active() []Notification {
	out := make([]Notification, 0, len(s.entries))
	for _, n := range s.entries {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

// Clear drops every notification (component teardown).
func (s *NotificationSet) Clear() {
	for kind := range s.entries {
		delete(s.entries, kind)
	}
}
