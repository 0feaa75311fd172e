// Package events fans out direct chat updates to connected participants.
package events

import (
	"context"

	"github.com/medsecure/telehealth/internal/store"
)

type Type string

const (
	TypeMessage Type = "message"
	TypeStatus  Type = "status"
)

type Event struct {
	Type    Type               `json:"type"`
	ChatID  string             `json:"chat_id"`
	Message *store.ChatMessage `json:"message,omitempty"`
	Status  string             `json:"status,omitempty"`
}

// Broker delivers events published for a chat to every subscriber of that
// chat. Delivery is best effort: a subscriber that falls behind loses events
// and is expected to re-read the history.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events for chatID. The channel is closed
	// when cancel is called, ctx ends, or the broker is closed.
	Subscribe(ctx context.Context, chatID string) (events <-chan Event, cancel func(), err error)
	Close() error
}

const subscriberBuffer = 16
