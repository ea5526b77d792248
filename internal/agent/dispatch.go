// Package agent maps an agent identifier, prompt and resume token to the
// command line a session runs. Nothing here touches the filesystem or
// spawns processes.
package agent

import (
	"github.com/kballard/go-shellquote"

	"github.com/iaptsiauri/pit/pkg/models"
)

// noAgentMessage is what a custom task with no command prints.
const noAgentMessage = "echo 'No agent configured. Type your command.'"

// Invocation describes one launch request.
type Invocation struct {
	// Agent is the configured agent identifier; unknown values fall back
	// to models.DefaultAgent.
	Agent string
	// Prompt is passed on fresh launches.
	Prompt string
	// Token is the resume token bound to the task. On a fresh claude
	// launch it becomes the --session-id.
	Token string
	// Resume asks for the agent's resume shape. Agents without one get a
	// fresh invocation instead.
	Resume bool
}

// Command is a ready-to-run argv.
type Command struct {
	Agent   models.AgentKind
	Argv    []string
	Resumed bool
}

// String renders the command the way a shell user would type it.
func (c Command) String() string {
	return shellquote.Join(c.Argv...)
}

// Build resolves an invocation to a command.
func Build(inv Invocation) Command {
	kind := models.ParseAgent(inv.Agent)

	if inv.Resume && kind.SupportsResume() {
		return Command{Agent: kind, Argv: resumeArgv(kind, inv.Token), Resumed: true}
	}
	return Command{Agent: kind, Argv: freshArgv(kind, inv.Prompt, inv.Token)}
}

func freshArgv(kind models.AgentKind, prompt, token string) []string {
	withPrompt := func(argv ...string) []string {
		if prompt == "" {
			return argv[:1]
		}
		return append(argv, prompt)
	}

	switch kind {
	case models.AgentPi:
		return withPrompt("pi")
	case models.AgentCodex:
		return withPrompt("codex")
	case models.AgentAider:
		return withPrompt("aider", "--message")
	case models.AgentAmp:
		return withPrompt("amp", "--prompt")
	case models.AgentGoose:
		return withPrompt("goose")
	case models.AgentCustom:
		// The prompt is the command.
		if prompt == "" {
			return []string{"sh", "-c", noAgentMessage}
		}
		return []string{"sh", "-c", prompt}
	default:
		argv := []string{"claude", "--session-id", token}
		if prompt != "" {
			argv = append(argv, prompt)
		}
		return argv
	}
}

func resumeArgv(kind models.AgentKind, token string) []string {
	switch kind {
	case models.AgentPi:
		return []string{"pi", "--continue"}
	default:
		return []string{"claude", "-r", token}
	}
}
