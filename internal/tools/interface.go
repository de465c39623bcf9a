// Package tools defines the capabilities the chat model may invoke while
// answering a question about a document, and the allow-list that decides
// which of them a model-emitted tool call may reach. Each capability is an
// Eino tool.InvokableTool so its schema can be bound to a chat model.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ErrToolNotAllowed is returned when a model asks for a tool outside the
// allow-list.
var ErrToolNotAllowed = errors.New("tools: tool not allowed")

// Capability is a tool the chat model may call.
type Capability interface {
	tool.InvokableTool

	// Name returns the unique tool name sent to the model.
	Name() string

	// Description returns the model-facing description of the tool.
	Description() string
}

// Toolset is a fixed allow-list of capabilities. Lookups of any other name
// fail closed with ErrToolNotAllowed.
type Toolset struct {
	byName map[string]Capability
	order  []Capability
}

// NewToolset returns a Toolset holding caps. Names must be unique.
func NewToolset(caps ...Capability) (*Toolset, error) {
	s := &Toolset{byName: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		if _, dup := s.byName[c.Name()]; dup {
			return nil, fmt.Errorf("tools: duplicate tool %q", c.Name())
		}
		s.byName[c.Name()] = c
		s.order = append(s.order, c)
	}
	return s, nil
}

// Lookup returns the capability registered under name.
func (s *Toolset) Lookup(name string) (Capability, error) {
	c, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrToolNotAllowed, name, strings.Join(s.Names(), ", "))
	}
	return c, nil
}

// Names returns the allowed tool names in registration order.
func (s *Toolset) Names() []string {
	names := make([]string, len(s.order))
	for i, c := range s.order {
		names[i] = c.Name()
	}
	return names
}

// Infos returns the tool schemas to bind to a chat model.
func (s *Toolset) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(s.order))
	for _, c := range s.order {
		info, err := c.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: %s info: %w", c.Name(), err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Invoke validates call against the allow-list and runs it.
func (s *Toolset) Invoke(ctx context.Context, call schema.ToolCall) (string, error) {
	c, err := s.Lookup(call.Function.Name)
	if err != nil {
		return "", err
	}
	out, err := c.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		return "", fmt.Errorf("tools: %s: %w", c.Name(), err)
	}
	return out, nil
}
