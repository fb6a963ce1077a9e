package assistant

import (
	"fmt"
	"strings"

	"factotum/internal/capability"
)

// buildSystemPrompt composes the static system entry from the assistant's
// identity, each agent's behavioral fragment, and a catalog of everything the
// assistant can do. Composed once at construction; identical for every
// session.
func buildSystemPrompt(name, instructions string, agents []*capability.Agent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a personal assistant.\n", name)
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	if len(agents) > 0 {
		b.WriteString("\nYou have the following capabilities:\n")
		for _, a := range agents {
			fmt.Fprintf(&b, "\n## %s\n%s\n", a.Name(), a.Description())
			if p := a.SystemPrompt(); p != "" {
				b.WriteString(p)
				b.WriteString("\n")
			}
			for _, t := range a.Summary().Capabilities {
				fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
			}
		}
	}

	b.WriteString("\nUse tools when they help; answer directly when they don't. ")
	b.WriteString("When a tool fails, tell the user what went wrong instead of pretending it succeeded.")
	return b.String()
}

// sessionHint is the transient per-turn system note carrying routing facts
// some tools need (reminders deliver back to the originating chat). It is
// rebuilt every turn and never persisted.
func sessionHint(channel, chatID string) string {
	return fmt.Sprintf("Session channel: %s, chat id: %s. Current turn only; use these values when a tool asks for channel or chat_id.", channel, chatID)
}
