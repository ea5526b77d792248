package lifecycle

import (
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/iaptsiauri/pit/pkg/models"
)

// RequiredConfig holds the collaborators every Orchestrator needs.
type RequiredConfig struct {
	Store      Store
	Workspaces Workspaces
	Sessions   Sessions
}

// Option configures an Orchestrator. Use the With* functions to create one.
type Option func(*options)

type options struct {
	defaultAgent string
	shell        string
	newToken     func() string
	logger       *log.Logger
	tracer       trace.Tracer
	checkpoints  Checkpoints
}

func defaultOptions() options {
	return options{
		defaultAgent: string(models.DefaultAgent),
		shell:        "/bin/sh",
		newToken:     uuid.NewString,
	}
}

// WithDefaultAgent sets the agent used when a task is created without one.
func WithDefaultAgent(agent string) Option {
	return func(o *options) {
		if agent != "" {
			o.defaultAgent = agent
		}
	}
}

// WithShell sets the program run by shell sessions.
func WithShell(shell string) Option {
	return func(o *options) {
		if shell != "" {
			o.shell = shell
		}
	}
}

// WithTokenGenerator replaces the resume token generator.
func WithTokenGenerator(fn func() string) Option {
	return func(o *options) { o.newToken = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithCheckpoints makes Delete remove the task's checkpoint tags.
func WithCheckpoints(c Checkpoints) Option {
	return func(o *options) { o.checkpoints = c }
}
