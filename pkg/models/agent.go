package models

// AgentKind identifies a coding-agent command pit knows how to invoke.
type AgentKind string

const (
	// AgentClaude is Claude Code. It is also the fallback for unknown agents.
	AgentClaude AgentKind = "claude"
	// AgentPi is the pi coding agent.
	AgentPi AgentKind = "pi"
	// AgentCodex is OpenAI Codex CLI.
	AgentCodex AgentKind = "codex"
	// AgentAider is aider.
	AgentAider AgentKind = "aider"
	// AgentAmp is Sourcegraph amp.
	AgentAmp AgentKind = "amp"
	// AgentGoose is Block's goose.
	AgentGoose AgentKind = "goose"
	// AgentCustom treats the prompt itself as the command to run.
	AgentCustom AgentKind = "custom"
)

// DefaultAgent is used when no agent is configured or the configured one is unknown.
const DefaultAgent = AgentClaude

// KnownAgents lists every agent kind in display order.
var KnownAgents = []AgentKind{
	AgentClaude,
	AgentPi,
	AgentCodex,
	AgentAider,
	AgentAmp,
	AgentGoose,
	AgentCustom,
}

// Valid returns true if the kind is a known value.
func (k AgentKind) Valid() bool {
	for _, known := range KnownAgents {
		if k == known {
			return true
		}
	}
	return false
}

// ParseAgent maps an identifier to its kind, falling back to DefaultAgent.
func ParseAgent(id string) AgentKind {
	k := AgentKind(id)
	if k.Valid() {
		return k
	}
	return DefaultAgent
}

// SupportsResume reports whether the agent can continue a previous session.
func (k AgentKind) SupportsResume() bool {
	return k == AgentClaude || k == AgentPi
}
