// Package channel implements the transports that carry conversations to and
// from users: an interactive terminal, Telegram long polling, and Slack
// Socket Mode. Every transport publishes inbound messages to the bus and
// registers an outbound handler under its own name.
package channel

import "strings"

// splitMessage breaks text into chunks of at most maxLen bytes, preferring to
// cut at a newline when one falls in the second half of the window so lists
// and paragraphs stay intact.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
