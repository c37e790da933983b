// Package channels connects external messaging surfaces to the orchestrator.
// Each channel type implements the Connector contract; the Manager owns the
// live connectors and the group lookup caches.
package channels

import (
	"context"
)

// InboundMessage is one message received from an external surface, before
// group resolution.
type InboundMessage struct {
	ExternalGroupID   string
	ExternalMessageID string
	SenderID          string
	SenderName        string
	Text              string
}

// MessageHandler receives inbound messages from a connector.
type MessageHandler func(msg InboundMessage)

// Connector is the capability contract every channel variant implements.
// Socket-based variants maintain a live connection and can send; the webhook
// variant is receive-only.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	SendMessage(ctx context.Context, externalGroupID, text string) error
	OnMessage(handler MessageHandler)
}
