// Package modeltest provides a scripted chat model for tests that exercise
// code built on eino's model interfaces without a live provider.
package modeltest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrExhausted is returned when a Model has no reply left for a call.
var ErrExhausted = errors.New("modeltest: no scripted reply left")

// Reply computes the model response to one Generate call.
type Reply func(input []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)

// Text returns a Reply answering with content.
func Text(content string) Reply {
	return func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	}
}

// ToolCall returns a Reply calling the named tool with JSON arguments.
func ToolCall(id, name, args string) Reply {
	return func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}}), nil
	}
}

// Fail returns a Reply failing with err.
func Fail(err error) Reply {
	return func([]*schema.Message, []*schema.ToolInfo) (*schema.Message, error) {
		return nil, err
	}
}

// Model is a model.ToolCallingChatModel that answers from a script. Replies
// are consumed in order; when Fallback is set it answers once the script is
// exhausted. Model is safe for concurrent use.
type Model struct {
	// Fallback answers calls after the scripted replies run out.
	Fallback Reply

	mu      sync.Mutex
	replies []Reply
	calls   [][]*schema.Message
	tools   []*schema.ToolInfo
	shared  *Model
}

// New returns a Model answering with replies in order.
func New(replies ...Reply) *Model {
	return &Model{replies: replies}
}

// Push appends replies to the script.
func (m *Model) Push(replies ...Reply) {
	root := m.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.replies = append(root.replies, replies...)
}

// Calls returns the inputs of every Generate call so far, across the model
// and every copy returned by WithTools.
func (m *Model) Calls() [][]*schema.Message {
	root := m.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	return append([][]*schema.Message(nil), root.calls...)
}

// Generate implements model.BaseChatModel.
func (m *Model) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	root := m.root()
	root.mu.Lock()
	root.calls = append(root.calls, append([]*schema.Message(nil), input...))
	var next Reply
	if len(root.replies) > 0 {
		next, root.replies = root.replies[0], root.replies[1:]
	} else {
		next = root.Fallback
	}
	root.mu.Unlock()

	if next == nil {
		return nil, ErrExhausted
	}
	return next(input, m.tools)
}

// Stream implements model.BaseChatModel with a single-chunk stream.
func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools implements model.ToolCallingChatModel. The returned model shares
// the script and call log of m.
func (m *Model) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &Model{tools: tools, shared: m.root()}, nil
}

// Tools returns the tools bound to this model.
func (m *Model) Tools() []*schema.ToolInfo { return m.tools }

func (m *Model) root() *Model {
	if m.shared != nil {
		return m.shared
	}
	return m
}
