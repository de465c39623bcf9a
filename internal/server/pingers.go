package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// pingFunc is the ping signature shared by rag.VectorStore,
// checkpoint.Store and rag.Index.
type pingFunc interface {
	Ping(ctx context.Context) error
}

// DependencyPinger labels any dependency with a Ping method so it can be
// registered as a readiness check.
type DependencyPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// dep is the dependency to ping.
	dep pingFunc
}

// NewDependencyPinger constructs a DependencyPinger named name for dep.
func NewDependencyPinger(name string, dep pingFunc) *DependencyPinger {
	return &DependencyPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the dependency.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// LLMPinger pings an LLM backend by sending a minimal generate request.
// It consumes tokens on every ping, so orchestrators should poll
// /api/ready sparingly.
type LLMPinger struct {
	// model is the chat model to ping.
	model model.BaseChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends "ping" and expects any non-nil reply.
func (p *LLMPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}
