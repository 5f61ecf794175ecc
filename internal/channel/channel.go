// Package channel is the chat transport: outbound sends, photo downloads and
// decoding of inbound webhook updates.
package channel

import "context"

type Sender interface {
	// Send delivers text to chatID, replying to replyTo when it is non-zero.
	Send(ctx context.Context, chatID, text string, replyTo int) error
	// Configured reports whether a send credential is present.
	Configured() bool
}
