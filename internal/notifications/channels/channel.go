package channels

import "context"

// Message is a channel-agnostic rendering of a notification event.
type Message struct {
	Subject string
	Body    string // markdown
}

// Channel sends a rendered Message to one external destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}
