// Package capability defines the unit of composition for the assistant: a
// named bundle of related tools plus descriptive metadata. Agents are
// siblings; one agent never calls into another. Cross-capability work (look
// up a contact, then set a reminder for them) is composed entirely by the
// oracle calling two tools in one turn.
package capability

import "factotum/internal/tool"

// Agent is one capability provider. It is immutable after construction and
// owns its tools exclusively.
type Agent struct {
	name         string
	description  string
	systemPrompt string
	tools        []*tool.Descriptor
}

// New constructs an agent with its full tool list fixed.
func New(name, description, systemPrompt string, tools ...*tool.Descriptor) *Agent {
	return &Agent{
		name:         name,
		description:  description,
		systemPrompt: systemPrompt,
		tools:        tools,
	}
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// SystemPrompt is this agent's behavioral fragment, folded into the
// coordinator's system prompt.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Tools returns the agent's descriptors in declaration order, for merging
// into a parent registry.
func (a *Agent) Tools() []*tool.Descriptor {
	out := make([]*tool.Descriptor, len(a.tools))
	copy(out, a.tools)
	return out
}

// Summary advertises the agent independent of any invocation.
type Summary struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Capabilities []ToolSummary `json:"capabilities"`
}

type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *Agent) Summary() Summary {
	caps := make([]ToolSummary, 0, len(a.tools))
	for _, d := range a.tools {
		caps = append(caps, ToolSummary{Name: d.Name(), Description: d.Description()})
	}
	return Summary{Name: a.name, Description: a.description, Capabilities: caps}
}
